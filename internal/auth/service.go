// Package auth はパスワード認証、Bearerトークン、セッション、
// Google OAuthによるログインと、リクエストごとの認証主体の解決を提供する。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/medialog/internal/model"
	"github.com/hitoshi/medialog/internal/repository"
)

// ErrOAuthFailed は外部ログインフローの失敗を表す。
var ErrOAuthFailed = errors.New("auth: oauth login failed")

const (
	minUsernameLength = 2
	maxUsernameLength = 30
	fallbackUsername  = "user"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL          time.Duration
	MobileRedirectURL string // モバイル向けのカスタムスキームURL
	WebRedirectPath   string // Webログイン後の遷移先
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions *SessionManager
	hasher   *PasswordHasher
	tokens   *TokenIssuer
	oauth    OAuthProvider
	state    *StateCodec
	validate *validator.Validate
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	sessions *SessionManager,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	oauth OAuthProvider,
	state *StateCodec,
	config ServiceConfig,
) *Service {
	if config.WebRedirectPath == "" {
		config.WebRedirectPath = "/app"
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		oauth:    oauth,
		state:    state,
		validate: newValidator(),
		config:   config,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=30"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput はパスワードログインの入力値。
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult はログイン成功時に発行した資格情報。
// Webはセッション、モバイルはトークンを使う。
type LoginResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// Register はユーザーを登録し、セッションとトークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, model.NewMissingFieldsError()
	}
	if len(in.Password) < 6 {
		return nil, model.NewValidationError("Password must be at least 6 characters")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, registerValidationError(err)
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailExistsError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))

	return s.issueCredentials(ctx, user)
}

func registerValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError("Invalid input")
	}
	fe := verrs[0]
	switch fe.Field() {
	case "username":
		return model.NewValidationError("Username must be between 2 and 30 characters")
	case "email":
		return model.NewValidationError("Invalid email")
	case "password":
		return model.NewValidationError("Password must be at most 72 characters")
	}
	return model.NewValidationError("Invalid input")
}

// Login はメールアドレスとパスワードで認証し、新しいセッションとトークンを発行する。
// 失敗理由によらずエラーメッセージは同一にする。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewMissingFieldsError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, model.NewInvalidLoginError()
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", "password"),
	)

	return s.issueCredentials(ctx, user)
}

// Logout はセッションを破棄する。存在しないセッションでもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	if sessionID != "" {
		slog.Info("user logged out")
	}
	return nil
}

// issueCredentials はセッションとBearerトークンを同時に発行する。
func (s *Service) issueCredentials(ctx context.Context, user *model.User) (*LoginResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Session: session, Token: token}, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	return s.tokens.Issue(TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, s.config.TokenTTL)
}

// OAuthStart は外部ログイン開始時の遷移先とCookieに保存するnonce。
type OAuthStart struct {
	URL   string
	Nonce string
}

// BeginOAuth はaudienceをstateに封入し、IdPの認証URLを返す。
func (s *Service) BeginOAuth(audience Audience) (*OAuthStart, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	state, err := s.state.Seal(OAuthState{Audience: audience, Nonce: nonce})
	if err != nil {
		return nil, err
	}
	return &OAuthStart{URL: s.oauth.GetLoginURL(state), Nonce: nonce}, nil
}

// OAuthCallback はIdPからのコールバックで受け取った値。
type OAuthCallback struct {
	Code          string
	State         string
	Nonce         string // oauth_state Cookieの値
	ProviderError string
}

// OAuthOutcome は外部ログイン完了時の結果。
// Webの場合はSessionのみ、モバイルの場合はTokenのみを持つ。
type OAuthOutcome struct {
	Audience    Audience
	User        *model.User
	Session     *model.Session
	Token       string
	RedirectURL string
}

// CompleteOAuth はコールバックを検証してユーザーを特定し、
// stateから復元したaudienceに応じてセッションまたはトークンを発行する。
func (s *Service) CompleteOAuth(ctx context.Context, cb OAuthCallback) (*OAuthOutcome, error) {
	if cb.ProviderError != "" {
		return nil, fmt.Errorf("%w: provider returned %q", ErrOAuthFailed, cb.ProviderError)
	}

	state, err := s.state.Open(cb.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}
	if cb.Nonce == "" || subtle.ConstantTimeCompare([]byte(cb.Nonce), []byte(state.Nonce)) != 1 {
		return nil, fmt.Errorf("%w: state nonce mismatch", ErrOAuthFailed)
	}
	if cb.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrOAuthFailed)
	}

	info, err := s.oauth.ExchangeCode(ctx, cb.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}

	user, err := s.resolveOAuthUser(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}

	switch state.Audience {
	case AudienceMobile:
		token, err := s.issueToken(user)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
		}
		redirect, err := mobileRedirect(s.config.MobileRedirectURL, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
		}
		slog.Info("user logged in",
			slog.String("user_id", user.ID),
			slog.String("method", "google"),
			slog.String("audience", string(AudienceMobile)),
		)
		return &OAuthOutcome{Audience: AudienceMobile, User: user, Token: token, RedirectURL: redirect}, nil

	default:
		session, err := s.sessions.Create(ctx, user.ID, user.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
		}
		slog.Info("user logged in",
			slog.String("user_id", user.ID),
			slog.String("method", "google"),
			slog.String("audience", string(AudienceWeb)),
		)
		return &OAuthOutcome{Audience: AudienceWeb, User: user, Session: session, RedirectURL: s.config.WebRedirectPath}, nil
	}
}

// resolveOAuthUser はGoogleのユーザー情報からユーザーを特定する。
// Google IDで見つからなければ、確認済みの同一メールアドレスを持つ未連携ユーザーに紐付け、
// それも無ければパスワード無しのユーザーを作成する。
func (s *Service) resolveOAuthUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	if info == nil || info.Subject == "" {
		return nil, errors.New("empty provider identity")
	}

	user, err := s.users.FindByGoogleID(ctx, info.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google id: %w", err)
	}
	if user != nil {
		return user, nil
	}

	email := normalizeEmail(info.Email)
	if email == "" {
		return nil, errors.New("provider returned no email")
	}

	if info.EmailVerified {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil {
			if existing.GoogleID != "" {
				return nil, errors.New("email already linked to another google account")
			}
			if err := s.users.LinkGoogleID(ctx, existing.ID, info.Subject); err != nil {
				return nil, err
			}
			existing.GoogleID = info.Subject
			slog.Info("google account linked", slog.String("user_id", existing.ID))
			return existing, nil
		}
	}

	now := time.Now()
	user = &model.User{
		ID:        uuid.New().String(),
		Username:  deriveUsername(info.Name, email),
		Email:     email,
		GoogleID:  info.Subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created", slog.String("user_id", user.ID), slog.String("provider", "google"))
	return user, nil
}

func mobileRedirect(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid mobile redirect url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deriveUsername はプロフィール名からユーザー名を決める。
// 名前が無ければメールアドレスのローカル部を使い、30文字で切り詰める。
func deriveUsername(name, email string) string {
	username := strings.TrimSpace(name)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		username = strings.TrimSpace(string([]rune(username)[:maxUsernameLength]))
	}
	if utf8.RuneCountInString(username) < minUsernameLength {
		return fallbackUsername
	}
	return username
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
