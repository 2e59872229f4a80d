package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/medialog/internal/auth"
	"github.com/hitoshi/medialog/internal/metrics"
	"github.com/hitoshi/medialog/internal/middleware"
	"github.com/hitoshi/medialog/internal/model"
)

// oauthFailedPath はOAuth失敗時のリダイレクト先。
const oauthFailedPath = "/login?error=oauth_failed"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.LoginResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	BeginOAuth(audience auth.Audience) (*auth.OAuthStart, error)
	CompleteOAuth(ctx context.Context, cb auth.OAuthCallback) (*auth.OAuthOutcome, error)
}

// SessionCookieStore はセッションCookieの読み書きインターフェース。
type SessionCookieStore interface {
	Write(w http.ResponseWriter, sessionID string) error
	Read(r *http.Request) string
	Clear(w http.ResponseWriter)
}

// LoginRecorder はログイン試行を記録する。
type LoginRecorder interface {
	RecordLogin(method string, success bool)
	RecordRegistration()
}

// AuthHandler はパスワード認証とGoogle OAuthのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	cookie   SessionCookieStore
	recorder LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, cookie SessionCookieStore, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookie:   cookie,
		recorder: recorder,
	}
}

// userSummary はレスポンスに含めるユーザー情報。
type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// credentialsResponse は登録・ログイン成功時のレスポンス。
// Webはセッション Cookie、モバイルはtokenを使う。
type credentialsResponse struct {
	OK    bool        `json:"ok"`
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

// meResponse は現在の認証主体のレスポンス。
type meResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordRegistration()
	}

	h.writeCredentials(w, http.StatusCreated, result)
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := h.service.Login(r.Context(), in)
	if h.recorder != nil {
		var apiErr *model.APIError
		failedLogin := errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials
		if err == nil || failedLogin {
			h.recorder.RecordLogin(metrics.LoginMethodPassword, err == nil)
		}
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeCredentials(w, http.StatusOK, result)
}

// writeCredentials はセッションCookieを設定し、トークンを含むレスポンスを書き込む。
func (h *AuthHandler) writeCredentials(w http.ResponseWriter, status int, result *auth.LoginResult) {
	if err := h.cookie.Write(w, result.Session.ID); err != nil {
		slog.Error("failed to write session cookie", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteJSON(w, status, credentialsResponse{
		OK:    true,
		Token: result.Token,
		User:  userSummary{ID: result.User.ID, Username: result.User.Username},
	})
}

// Logout はセッションを破棄してCookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.destroySession(w, r)
	middleware.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

// LogoutPage はセッションを破棄してログイン画面へ遷移する。
// GET /logout
func (h *AuthHandler) LogoutPage(w http.ResponseWriter, r *http.Request) {
	h.destroySession(w, r)
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

// destroySession はセッションを破棄する。破棄に失敗してもCookieは削除する。
func (h *AuthHandler) destroySession(w http.ResponseWriter, r *http.Request) {
	if sessionID := h.cookie.Read(r); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}
	h.cookie.Clear(w)
}

// Me は現在の認証主体を返す。セッションとBearerのどちらでも同じ形で返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := principalOrUnauthorized(w, r)
	if p == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, meResponse{UserID: p.UserID, Username: p.Username})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google （?mobile=1 または ?audience=mobile でモバイル向け）
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	audience := auth.ParseAudience(r.URL.Query().Get("audience"))
	if r.URL.Query().Get("mobile") != "" {
		audience = auth.ParseAudience(r.URL.Query().Get("mobile"))
	}

	start, err := h.service.BeginOAuth(audience)
	if err != nil {
		slog.Error("failed to begin oauth", slog.String("error", err.Error()))
		http.Redirect(w, r, oauthFailedPath, http.StatusFound)
		return
	}

	auth.WriteStateCookie(w, start.Nonce)
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// 失敗時は常に /login?error=oauth_failed へリダイレクトし、JSONは返さない。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nonce := auth.ReadStateCookie(r)
	auth.ClearStateCookie(w)

	outcome, err := h.service.CompleteOAuth(r.Context(), auth.OAuthCallback{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		Nonce:         nonce,
		ProviderError: q.Get("error"),
	})
	if h.recorder != nil {
		h.recorder.RecordLogin(metrics.LoginMethodGoogle, err == nil)
	}
	if err != nil {
		slog.Warn("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, oauthFailedPath, http.StatusFound)
		return
	}

	if outcome.Audience == auth.AudienceMobile {
		http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
		return
	}

	if err := h.cookie.Write(w, outcome.Session.ID); err != nil {
		slog.Error("failed to write session cookie", slog.String("error", err.Error()))
		http.Redirect(w, r, oauthFailedPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
}
