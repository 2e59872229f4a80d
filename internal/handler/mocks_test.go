package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/medialog/internal/auth"
	"github.com/hitoshi/medialog/internal/entry"
	"github.com/hitoshi/medialog/internal/middleware"
	"github.com/hitoshi/medialog/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn      func(ctx context.Context, in auth.RegisterInput) (*auth.LoginResult, error)
	loginFn         func(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	logoutFn        func(ctx context.Context, sessionID string) error
	beginOAuthFn    func(audience auth.Audience) (*auth.OAuthStart, error)
	completeOAuthFn func(ctx context.Context, cb auth.OAuthCallback) (*auth.OAuthOutcome, error)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.LoginResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) BeginOAuth(audience auth.Audience) (*auth.OAuthStart, error) {
	if m.beginOAuthFn != nil {
		return m.beginOAuthFn(audience)
	}
	return nil, nil
}

func (m *mockAuthService) CompleteOAuth(ctx context.Context, cb auth.OAuthCallback) (*auth.OAuthOutcome, error) {
	if m.completeOAuthFn != nil {
		return m.completeOAuthFn(ctx, cb)
	}
	return nil, nil
}

// plainCookie は署名しないセッションCookieのモック。
type plainCookie struct {
	cleared bool
}

var _ SessionCookieStore = (*plainCookie)(nil)

func (c *plainCookie) Write(w http.ResponseWriter, sessionID string) error {
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookieName, Value: sessionID, Path: "/"})
	return nil
}

func (c *plainCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *plainCookie) Clear(w http.ResponseWriter) {
	c.cleared = true
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookieName, Value: "", Path: "/", MaxAge: -1})
}

type loginRecord struct {
	method  string
	success bool
}

type recordingLoginRecorder struct {
	logins        []loginRecord
	registrations int
}

var _ LoginRecorder = (*recordingLoginRecorder)(nil)

func (r *recordingLoginRecorder) RecordLogin(method string, success bool) {
	r.logins = append(r.logins, loginRecord{method: method, success: success})
}

func (r *recordingLoginRecorder) RecordRegistration() {
	r.registrations++
}

type mockEntryService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Entry, error)
	createFn func(ctx context.Context, userID string, in entry.CreateInput) (*model.Entry, error)
	updateFn func(ctx context.Context, userID, id string, in entry.UpdateInput) (*model.Entry, error)
	deleteFn func(ctx context.Context, userID, id string) error
}

var _ EntryServiceInterface = (*mockEntryService)(nil)

func (m *mockEntryService) List(ctx context.Context, userID string) ([]*model.Entry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockEntryService) Create(ctx context.Context, userID string, in entry.CreateInput) (*model.Entry, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockEntryService) Update(ctx context.Context, userID, id string, in entry.UpdateInput) (*model.Entry, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return nil, nil
}

func (m *mockEntryService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

var _ UserServiceInterface = (*mockUserService)(nil)

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockAuthenticator struct {
	authenticateFn func(r *http.Request) (*model.Principal, error)
}

var _ PrincipalAuthenticator = (*mockAuthenticator)(nil)

func (m *mockAuthenticator) Authenticate(r *http.Request) (*model.Principal, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(r)
	}
	return nil, auth.ErrUnauthenticated
}

// --- テストヘルパー ---

// withPrincipal はテスト用にリクエストコンテキストに認証主体を注入するヘルパー。
func withPrincipal(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithPrincipal(r.Context(), &model.Principal{
		UserID:   userID,
		Username: "ali",
		Source:   model.PrincipalSourceSession,
	})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseErrorResponse はレスポンスボディから {"error": ...} をパースするヘルパー。
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body.Error
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
