package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/hitoshi/medialog/internal/auth"
	"github.com/hitoshi/medialog/internal/middleware"
	"github.com/hitoshi/medialog/internal/model"
)

// appPath はログイン後のアプリ画面のパス。
const appPath = "/app"

// PrincipalAuthenticator はリクエストから認証主体を解決する。
type PrincipalAuthenticator interface {
	Authenticate(r *http.Request) (*model.Principal, error)
}

// PageHandler はHTML画面の配信とリダイレクトを扱う。
type PageHandler struct {
	authenticator PrincipalAuthenticator
	staticDir     string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(authenticator PrincipalAuthenticator, staticDir string) *PageHandler {
	return &PageHandler{
		authenticator: authenticator,
		staticDir:     staticDir,
	}
}

// Root は認証状態に応じて /app または /login へリダイレクトする。
// GET /
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	authenticated, ok := h.checkAuthenticated(w, r)
	if !ok {
		return
	}
	if authenticated {
		http.Redirect(w, r, appPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

// Login はログイン画面を返す。認証済みなら /app へリダイレクトする。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.serveGuestPage(w, r, "login.html")
}

// Register は登録画面を返す。認証済みなら /app へリダイレクトする。
// GET /register
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.serveGuestPage(w, r, "register.html")
}

// App はアプリ画面を返す。認証ミドルウェアの内側に配置する。
// GET /app
func (h *PageHandler) App(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "app.html")
}

// Static は静的アセットを配信するハンドラーを返す。
func (h *PageHandler) Static() http.Handler {
	return http.FileServer(http.Dir(h.staticDir))
}

func (h *PageHandler) serveGuestPage(w http.ResponseWriter, r *http.Request, name string) {
	authenticated, ok := h.checkAuthenticated(w, r)
	if !ok {
		return
	}
	if authenticated {
		http.Redirect(w, r, appPath, http.StatusFound)
		return
	}
	h.serveFile(w, r, name)
}

// checkAuthenticated は認証済みかどうかを返す。
// ストア障害時は503を書き込み、okにfalseを返す。
func (h *PageHandler) checkAuthenticated(w http.ResponseWriter, r *http.Request) (authenticated, ok bool) {
	_, err := h.authenticator.Authenticate(r)
	switch {
	case err == nil:
		return true, true
	case errors.Is(err, auth.ErrStoreUnavailable):
		middleware.WriteAuthFailure(w, r, err)
		return false, false
	default:
		return false, true
	}
}

func (h *PageHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, name))
}
