package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/medialog/internal/model"
	"github.com/hitoshi/medialog/internal/repository"
)

// SessionManager はサーバー側セッションの作成・参照・破棄を行う。
// 有効期限は作成時点から固定で、参照による延長はしない。
type SessionManager struct {
	repo   repository.SessionRepository
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(repo repository.SessionRepository, maxAge time.Duration) *SessionManager {
	return &SessionManager{repo: repo, maxAge: maxAge, now: time.Now}
}

// Create はセッションを作成し永続化する。
func (m *SessionManager) Create(ctx context.Context, userID, username string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Username:  username,
		ExpiresAt: now.Add(m.maxAge),
		CreatedAt: now,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Read は有効なセッションを返す。存在しないか期限切れの場合はnilを返す。
func (m *SessionManager) Read(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.IsExpired(m.now()) {
		return nil, nil
	}
	return session, nil
}

// Destroy はセッションを破棄する。存在しないセッションの破棄もエラーにしない。
func (m *SessionManager) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
