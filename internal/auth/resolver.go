package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/medialog/internal/model"
)

var (
	// ErrUnauthenticated は資格情報が提示されていないことを表す。
	ErrUnauthenticated = errors.New("auth: not authenticated")
	// ErrInvalidCredentials は提示された資格情報が拒否されたことを表す。
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrStoreUnavailable はセッションストアの障害を表す。認証判定ではない。
	ErrStoreUnavailable = errors.New("auth: session store unavailable")
)

// SessionLookup は現在のリクエストに紐づくセッションを返す。
// セッションが無い場合はnil, nilを返す。
type SessionLookup func(ctx context.Context) (*model.Session, error)

// TokenVerifier はBearerトークンを検証する。
type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}

// Resolver はリクエストの資格情報から認証済みの主体を決定する。
//
// 判定順序は固定:
//  1. 有効なセッションがあればそれを使う。Authorizationヘッダーは参照しない。
//  2. Authorizationヘッダーがあれば Bearer トークンを検証する。
//     失敗した場合はErrInvalidCredentialsで終了し、他の手段にフォールバックしない。
//  3. どちらも無ければErrUnauthenticated。
type Resolver struct {
	tokens TokenVerifier
	now    func() time.Time
}

// NewResolver はResolverを生成する。
func NewResolver(tokens TokenVerifier) *Resolver {
	return &Resolver{tokens: tokens, now: time.Now}
}

// Resolve はセッションとAuthorizationヘッダーからPrincipalを解決する。
func (r *Resolver) Resolve(ctx context.Context, lookup SessionLookup, authorization string) (*model.Principal, error) {
	if lookup != nil {
		session, err := lookup(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if session != nil && !session.IsExpired(r.now()) {
			return &model.Principal{
				UserID:   session.UserID,
				Username: session.Username,
				Source:   model.PrincipalSourceSession,
			}, nil
		}
	}

	if authorization == "" {
		return nil, ErrUnauthenticated
	}

	token, ok := bearerToken(authorization)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported authorization scheme", ErrInvalidCredentials)
	}

	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	return &model.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Source:   model.PrincipalSourceBearer,
	}, nil
}

// bearerToken は "Bearer <token>" 形式のヘッダーからトークンを取り出す。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
