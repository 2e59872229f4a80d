package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/medialog/internal/model"
	"github.com/hitoshi/medialog/internal/repository"
)

// memUserRepo はメールアドレスの一意性を再現するメモリ上のユーザーリポジトリ。
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) FindByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) LinkGoogleID(_ context.Context, userID, googleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	u.GoogleID = googleID
	return nil
}

func (m *memUserRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)

type testEnv struct {
	svc      *Service
	users    repository.UserRepository
	sessions *memSessionRepo
	tokens   *TokenIssuer
	state    *StateCodec
	provider *mockOAuthProvider
}

func newTestService(t *testing.T, users repository.UserRepository) *testEnv {
	t.Helper()
	if users == nil {
		users = newMemUserRepo()
	}
	sessions := newMemSessionRepo()
	tokens := NewTokenIssuer("jwt-secret")
	state := NewStateCodec("session-secret")
	provider := &mockOAuthProvider{}
	svc := NewService(
		users,
		NewSessionManager(sessions, 7*24*time.Hour),
		NewPasswordHasher(bcrypt.MinCost),
		tokens,
		provider,
		state,
		ServiceConfig{TokenTTL: 7 * 24 * time.Hour, MobileRedirectURL: "medialoggermobile://success"},
	)
	return &testEnv{svc: svc, users: users, sessions: sessions, tokens: tokens, state: state, provider: provider}
}

func assertAPIError(t *testing.T, err error, code, message string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != code || apiErr.Message != message {
		t.Errorf("APIError = {%s %q}, want {%s %q}", apiErr.Code, apiErr.Message, code, message)
	}
}

func TestRegister_CreatesUserSessionAndToken(t *testing.T) {
	env := newTestService(t, nil)

	res, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "  ali ", Email: " A@X.com ", Password: "abcdef",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if res.User.Username != "ali" {
		t.Errorf("Username = %q, want ali", res.User.Username)
	}
	if res.User.Email != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", res.User.Email)
	}
	if res.User.PasswordHash == "" || res.User.PasswordHash == "abcdef" {
		t.Errorf("PasswordHash = %q, want bcrypt hash", res.User.PasswordHash)
	}
	if res.Session == nil || env.sessions.count() != 1 {
		t.Fatal("session should be created")
	}

	claims, err := env.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Username != "ali" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      RegisterInput
		code    string
		message string
	}{
		{"missing username", RegisterInput{Email: "a@x.com", Password: "abcdef"}, model.ErrCodeMissingFields, "Missing fields"},
		{"blank username", RegisterInput{Username: "   ", Email: "a@x.com", Password: "abcdef"}, model.ErrCodeMissingFields, "Missing fields"},
		{"missing email", RegisterInput{Username: "ali", Password: "abcdef"}, model.ErrCodeMissingFields, "Missing fields"},
		{"missing password", RegisterInput{Username: "ali", Email: "a@x.com"}, model.ErrCodeMissingFields, "Missing fields"},
		{"short password", RegisterInput{Username: "ali", Email: "a@x.com", Password: "abcde"}, model.ErrCodeValidation, "Password must be at least 6 characters"},
		{"short username", RegisterInput{Username: "a", Email: "a@x.com", Password: "abcdef"}, model.ErrCodeValidation, "Username must be between 2 and 30 characters"},
		{"long username", RegisterInput{Username: strings.Repeat("a", 31), Email: "a@x.com", Password: "abcdef"}, model.ErrCodeValidation, "Username must be between 2 and 30 characters"},
		{"bad email", RegisterInput{Username: "ali", Email: "not-an-email", Password: "abcdef"}, model.ErrCodeValidation, "Invalid email"},
		{"long password", RegisterInput{Username: "ali", Email: "a@x.com", Password: strings.Repeat("p", 73)}, model.ErrCodeValidation, "Password must be at most 72 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestService(t, nil)
			_, err := env.svc.Register(context.Background(), tt.in)
			assertAPIError(t, err, tt.code, tt.message)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterInput{Username: "ali", Email: "a@x.com", Password: "abcdef"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := env.svc.Register(ctx, RegisterInput{Username: "other", Email: "A@x.com", Password: "abcdef"})
	assertAPIError(t, err, model.ErrCodeEmailExists, "Email already exists")
}

func TestRegister_DuplicateEmailRace_MapsToEmailExists(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(context.Context, *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	env := newTestService(t, users)

	_, err := env.svc.Register(context.Background(), RegisterInput{Username: "ali", Email: "a@x.com", Password: "abcdef"})
	assertAPIError(t, err, model.ErrCodeEmailExists, "Email already exists")
}

func TestLogin_Scenario(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, RegisterInput{Username: "ali", Email: "a@x.com", Password: "abcdef"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong!"})
	assertAPIError(t, err, model.ErrCodeInvalidCredentials, "Invalid email or password")

	res, err := env.svc.Login(ctx, LoginInput{Email: "A@X.COM", Password: "abcdef"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Errorf("UserID = %q, want %q", res.User.ID, reg.User.ID)
	}
	if res.Session.ID == reg.Session.ID {
		t.Error("login should create a fresh session")
	}
	if res.Token == "" {
		t.Error("login should issue a token")
	}
}

func TestLogin_UnknownEmailAndPasswordlessUser(t *testing.T) {
	users := newMemUserRepo()
	users.users["g"] = &model.User{ID: "g", Username: "google", Email: "g@x.com", GoogleID: "sub"}
	env := newTestService(t, users)

	for _, in := range []LoginInput{
		{Email: "nobody@x.com", Password: "abcdef"},
		{Email: "g@x.com", Password: "abcdef"},
	} {
		_, err := env.svc.Login(context.Background(), in)
		assertAPIError(t, err, model.ErrCodeInvalidCredentials, "Invalid email or password")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestService(t, nil)

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "a@x.com"})
	assertAPIError(t, err, model.ErrCodeMissingFields, "Missing fields")
}

func TestLogin_StoreError(t *testing.T) {
	users := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	env := newTestService(t, users)

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "abcdef"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("store error should not be an APIError: %v", err)
	}
}

func TestLogout_DestroysSessionAndIsIdempotent(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()

	res, _ := env.svc.Register(ctx, RegisterInput{Username: "ali", Email: "a@x.com", Password: "abcdef"})

	if err := env.svc.Logout(ctx, res.Session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if env.sessions.count() != 0 {
		t.Error("session should be destroyed")
	}
	if err := env.svc.Logout(ctx, res.Session.ID); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
	if err := env.svc.Logout(ctx, ""); err != nil {
		t.Errorf("Logout(\"\") error = %v", err)
	}
}

// --- OAuth ---

func beginAndCallback(t *testing.T, env *testEnv, audience Audience) OAuthCallback {
	t.Helper()
	var sealed string
	env.provider.getLoginURLFn = func(state string) string {
		sealed = state
		return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
	}

	start, err := env.svc.BeginOAuth(audience)
	if err != nil {
		t.Fatalf("BeginOAuth() error = %v", err)
	}
	if start.Nonce == "" || !strings.Contains(start.URL, url.QueryEscape(sealed)) {
		t.Fatalf("BeginOAuth() = %+v", start)
	}
	return OAuthCallback{Code: "code", State: sealed, Nonce: start.Nonce}
}

func googleUser(sub, email, name string) func(context.Context, string) (*OAuthUserInfo, error) {
	return func(_ context.Context, code string) (*OAuthUserInfo, error) {
		return &OAuthUserInfo{Subject: sub, Email: email, EmailVerified: true, Name: name}, nil
	}
}

func TestCompleteOAuth_MobileAudience_ReturnsTokenRedirectWithoutSession(t *testing.T) {
	env := newTestService(t, nil)
	env.provider.exchangeCodeFn = googleUser("sub-1", "m@x.com", "Mobile User")

	cb := beginAndCallback(t, env, AudienceMobile)
	out, err := env.svc.CompleteOAuth(context.Background(), cb)
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}

	if out.Audience != AudienceMobile {
		t.Errorf("Audience = %q, want mobile", out.Audience)
	}
	if out.Session != nil || env.sessions.count() != 0 {
		t.Error("mobile login must not create a session")
	}

	u, err := url.Parse(out.RedirectURL)
	if err != nil {
		t.Fatalf("invalid redirect: %v", err)
	}
	if u.Scheme != "medialoggermobile" || u.Host != "success" {
		t.Errorf("RedirectURL = %q, want medialoggermobile://success?token=...", out.RedirectURL)
	}
	token := u.Query().Get("token")
	if token == "" || token != out.Token {
		t.Fatalf("token in redirect = %q, want %q", token, out.Token)
	}
	claims, err := env.tokens.Verify(token)
	if err != nil {
		t.Fatalf("issued token should verify: %v", err)
	}
	if claims.UserID != out.User.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, out.User.ID)
	}
}

func TestCompleteOAuth_WebAudience_ReturnsSessionWithoutToken(t *testing.T) {
	env := newTestService(t, nil)
	env.provider.exchangeCodeFn = googleUser("sub-1", "w@x.com", "Web User")

	cb := beginAndCallback(t, env, AudienceWeb)
	out, err := env.svc.CompleteOAuth(context.Background(), cb)
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}

	if out.Audience != AudienceWeb {
		t.Errorf("Audience = %q, want web", out.Audience)
	}
	if out.Session == nil || env.sessions.count() != 1 {
		t.Fatal("web login must create a session")
	}
	if out.Token != "" {
		t.Error("web login must not expose a token")
	}
	if out.RedirectURL != "/app" {
		t.Errorf("RedirectURL = %q, want /app", out.RedirectURL)
	}
}

func TestCompleteOAuth_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cb *OAuthCallback)
	}{
		{"provider error", func(cb *OAuthCallback) { cb.ProviderError = "access_denied" }},
		{"tampered state", func(cb *OAuthCallback) { cb.State = "mobile" }},
		{"nonce mismatch", func(cb *OAuthCallback) { cb.Nonce = "other" }},
		{"missing nonce cookie", func(cb *OAuthCallback) { cb.Nonce = "" }},
		{"missing code", func(cb *OAuthCallback) { cb.Code = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestService(t, nil)
			env.provider.exchangeCodeFn = googleUser("sub-1", "m@x.com", "User")

			cb := beginAndCallback(t, env, AudienceMobile)
			tt.mutate(&cb)

			out, err := env.svc.CompleteOAuth(context.Background(), cb)
			if !errors.Is(err, ErrOAuthFailed) {
				t.Errorf("CompleteOAuth() error = %v, want ErrOAuthFailed", err)
			}
			if out != nil {
				t.Errorf("CompleteOAuth() = %+v, want nil", out)
			}
			if env.sessions.count() != 0 {
				t.Error("no session should be created on failure")
			}
		})
	}
}

func TestCompleteOAuth_ExchangeFailure(t *testing.T) {
	env := newTestService(t, nil)
	env.provider.exchangeCodeFn = func(context.Context, string) (*OAuthUserInfo, error) {
		return nil, errors.New("network failure")
	}

	cb := beginAndCallback(t, env, AudienceWeb)
	if _, err := env.svc.CompleteOAuth(context.Background(), cb); !errors.Is(err, ErrOAuthFailed) {
		t.Errorf("CompleteOAuth() error = %v, want ErrOAuthFailed", err)
	}
}

func TestCompleteOAuth_ExistingGoogleUser_LogsIn(t *testing.T) {
	users := newMemUserRepo()
	users.users["u-1"] = &model.User{ID: "u-1", Username: "known", Email: "k@x.com", GoogleID: "sub-1"}
	env := newTestService(t, users)
	env.provider.exchangeCodeFn = googleUser("sub-1", "k@x.com", "Known")

	out, err := env.svc.CompleteOAuth(context.Background(), beginAndCallback(t, env, AudienceWeb))
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}
	if out.User.ID != "u-1" {
		t.Errorf("UserID = %q, want u-1", out.User.ID)
	}
	if len(users.users) != 1 {
		t.Errorf("users = %d, want 1 (no new user)", len(users.users))
	}
}

func TestCompleteOAuth_LinksVerifiedEmailToPasswordUser(t *testing.T) {
	users := newMemUserRepo()
	users.users["u-1"] = &model.User{ID: "u-1", Username: "ali", Email: "a@x.com", PasswordHash: "hash"}
	env := newTestService(t, users)
	env.provider.exchangeCodeFn = googleUser("sub-9", "A@x.com", "Ali G")

	out, err := env.svc.CompleteOAuth(context.Background(), beginAndCallback(t, env, AudienceWeb))
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}
	if out.User.ID != "u-1" {
		t.Errorf("UserID = %q, want u-1", out.User.ID)
	}
	if users.users["u-1"].GoogleID != "sub-9" {
		t.Errorf("GoogleID = %q, want sub-9", users.users["u-1"].GoogleID)
	}
}

func TestCompleteOAuth_UnverifiedEmailIsNotLinked(t *testing.T) {
	users := newMemUserRepo()
	users.users["u-1"] = &model.User{ID: "u-1", Username: "ali", Email: "a@x.com", PasswordHash: "hash"}
	env := newTestService(t, users)
	env.provider.exchangeCodeFn = func(context.Context, string) (*OAuthUserInfo, error) {
		return &OAuthUserInfo{Subject: "sub-9", Email: "a@x.com", EmailVerified: false}, nil
	}

	_, err := env.svc.CompleteOAuth(context.Background(), beginAndCallback(t, env, AudienceWeb))
	if !errors.Is(err, ErrOAuthFailed) {
		t.Fatalf("CompleteOAuth() error = %v, want ErrOAuthFailed", err)
	}
	if users.users["u-1"].GoogleID != "" {
		t.Error("unverified email must not be linked")
	}
}

func TestCompleteOAuth_CreatesPasswordlessUser(t *testing.T) {
	users := newMemUserRepo()
	env := newTestService(t, users)
	env.provider.exchangeCodeFn = googleUser("sub-new", "new@x.com", "")

	out, err := env.svc.CompleteOAuth(context.Background(), beginAndCallback(t, env, AudienceWeb))
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}
	if out.User.HasPassword() {
		t.Error("google user should not have a password")
	}
	if out.User.GoogleID != "sub-new" {
		t.Errorf("GoogleID = %q, want sub-new", out.User.GoogleID)
	}
	if out.User.Username != "new" {
		t.Errorf("Username = %q, want new", out.User.Username)
	}
}

func TestDeriveUsername(t *testing.T) {
	tests := []struct {
		name, email, want string
	}{
		{"Ali Hassan", "a@x.com", "Ali Hassan"},
		{"  ", "reader@x.com", "reader"},
		{"", "x@x.com", "user"},
		{strings.Repeat("名", 40), "a@x.com", strings.Repeat("名", 30)},
	}
	for _, tt := range tests {
		if got := deriveUsername(tt.name, tt.email); got != tt.want {
			t.Errorf("deriveUsername(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}
