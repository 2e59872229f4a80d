package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/medialog/internal/auth"
	"github.com/hitoshi/medialog/internal/model"
)

// contextKey はコンテキストキーの型。他パッケージのキーとの衝突を防ぐ。
type contextKey string

const principalContextKey contextKey = "principal"

// LoginPath は未認証のページリクエストのリダイレクト先。
const LoginPath = "/login"

// ErrNoPrincipal はコンテキストにPrincipalが設定されていない場合のエラー。
var ErrNoPrincipal = errors.New("principal not found in context")

// PrincipalResolver はリクエストの資格情報からPrincipalを解決する。
type PrincipalResolver interface {
	Resolve(ctx context.Context, lookup auth.SessionLookup, authorization string) (*model.Principal, error)
}

// SessionIDReader はリクエストのCookieからセッションIDを読み取る。
type SessionIDReader interface {
	Read(r *http.Request) string
}

// SessionReader はセッションIDから有効なセッションを取得する。
type SessionReader interface {
	Read(ctx context.Context, sessionID string) (*model.Session, error)
}

// AuthObserver は認証判定の結果を受け取る。メトリクス収集に使う。
type AuthObserver interface {
	ObserveAuthResolution(outcome string)
}

// 認証判定の結果ラベル
const (
	AuthOutcomeSession            = "session"
	AuthOutcomeBearer             = "bearer"
	AuthOutcomeUnauthenticated    = "unauthenticated"
	AuthOutcomeInvalidCredentials = "invalid_credentials"
	AuthOutcomeStoreUnavailable   = "store_unavailable"
)

// Authenticator はセッションCookieとAuthorizationヘッダーの両方からPrincipalを解決する。
type Authenticator struct {
	resolver PrincipalResolver
	cookie   SessionIDReader
	sessions SessionReader
	observer AuthObserver
}

// NewAuthenticator はAuthenticatorを生成する。observerはnilでもよい。
func NewAuthenticator(resolver PrincipalResolver, cookie SessionIDReader, sessions SessionReader, observer AuthObserver) *Authenticator {
	return &Authenticator{
		resolver: resolver,
		cookie:   cookie,
		sessions: sessions,
		observer: observer,
	}
}

// Authenticate はリクエストからPrincipalを解決する。
// エラーはauth.ErrUnauthenticated、auth.ErrInvalidCredentials、auth.ErrStoreUnavailableのいずれかをラップする。
func (a *Authenticator) Authenticate(r *http.Request) (*model.Principal, error) {
	lookup := func(ctx context.Context) (*model.Session, error) {
		sessionID := a.cookie.Read(r)
		if sessionID == "" {
			return nil, nil
		}
		return a.sessions.Read(ctx, sessionID)
	}

	principal, err := a.resolver.Resolve(r.Context(), lookup, r.Header.Get("Authorization"))
	a.observe(principal, err)
	return principal, err
}

// Middleware は認証必須ルート用のミドルウェアを返す。
// 解決したPrincipalをコンテキストに格納し、失敗時はリクエスト種別に応じた応答を返す。
func (a *Authenticator) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.Authenticate(r)
			if err != nil {
				WriteAuthFailure(w, r, err)
				return
			}

			annotateLog(r.Context(), slog.String("user_id", principal.UserID))
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) observe(principal *model.Principal, err error) {
	if a.observer == nil {
		return
	}
	outcome := AuthOutcomeUnauthenticated
	switch {
	case err == nil && principal.Source == model.PrincipalSourceBearer:
		outcome = AuthOutcomeBearer
	case err == nil:
		outcome = AuthOutcomeSession
	case errors.Is(err, auth.ErrStoreUnavailable):
		outcome = AuthOutcomeStoreUnavailable
	case errors.Is(err, auth.ErrInvalidCredentials):
		outcome = AuthOutcomeInvalidCredentials
	}
	a.observer.ObserveAuthResolution(outcome)
}

// WriteAuthFailure は認証失敗をリクエスト種別に応じて書き込む。
//
//   - ストア障害: 503（認証判定ではないため401にしない）
//   - ページ: /login へ302リダイレクト
//   - API: 401 JSON。提示されたトークンが拒否された場合は "Invalid token"
func WriteAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	class := RequestClassFromRequest(r)

	if errors.Is(err, auth.ErrStoreUnavailable) {
		slog.Error("session store unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if class == APIRequest {
			WriteErrorResponse(w, http.StatusServiceUnavailable, MessageServiceUnavailable)
			return
		}
		http.Error(w, MessageServiceUnavailable, http.StatusServiceUnavailable)
		return
	}

	if class == PageRequest {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Debug("bearer token rejected", slog.String("error", err.Error()))
		WriteErrorResponse(w, http.StatusUnauthorized, MessageInvalidToken)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, MessageNotAuthorized)
}

// PrincipalFromContext はコンテキストから認証済みのPrincipalを取得する。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || principal == nil {
		return nil, ErrNoPrincipal
	}
	return principal, nil
}

// ContextWithPrincipal はPrincipalを格納したコンテキストを返す。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
