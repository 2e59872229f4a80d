package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/medialog/internal/auth"
	"github.com/hitoshi/medialog/internal/model"
)

// staticCookie はテスト用のSessionIDReader。"session_id" Cookieの値をそのまま返す。
type staticCookie struct{}

func (staticCookie) Read(r *http.Request) string {
	c, err := r.Cookie("session_id")
	if err != nil {
		return ""
	}
	return c.Value
}

// mockSessionReader はSessionReaderのモック。
type mockSessionReader struct {
	readFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionReader) Read(ctx context.Context, id string) (*model.Session, error) {
	if m.readFn != nil {
		return m.readFn(ctx, id)
	}
	return nil, nil
}

// mockTokens はauth.TokenVerifierのモック。"good-token"のみ受理する。
type mockTokens struct{}

func (mockTokens) Verify(token string) (*auth.TokenClaims, error) {
	if token == "good-token" {
		return &auth.TokenClaims{UserID: "user-bearer", Username: "bea"}, nil
	}
	return nil, auth.ErrTokenBadSignature
}

// recordingObserver はAuthObserverのモック。
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAuthResolution(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

// validSessionReader は "valid-session" のみを有効として扱うSessionReaderを返す。
func validSessionReader(userID string) *mockSessionReader {
	return &mockSessionReader{
		readFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "valid-session" {
				return nil, nil
			}
			return &model.Session{
				ID:        id,
				UserID:    userID,
				Username:  "sess",
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}
}

// newTestAuthenticator は実際のauth.Resolverを使うAuthenticatorを生成する。
func newTestAuthenticator(sessions SessionReader, observer AuthObserver) *Authenticator {
	return NewAuthenticator(auth.NewResolver(mockTokens{}), staticCookie{}, sessions, observer)
}

// withPrincipal はPrincipalを格納したリクエストを返す。
func withPrincipal(r *http.Request, userID string, source model.PrincipalSource) *http.Request {
	p := &model.Principal{UserID: userID, Username: "u", Source: source}
	return r.WithContext(ContextWithPrincipal(r.Context(), p))
}
