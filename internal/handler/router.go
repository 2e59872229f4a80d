package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/medialog/internal/middleware"
)

// Authenticator は保護ルートの認証ミドルウェアと画面用の認証判定を提供する。
type Authenticator interface {
	PrincipalAuthenticator
	Middleware() func(next http.Handler) http.Handler
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger // nilの場合はslog.Default()
	Authenticator     Authenticator
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	SecureHeaders     bool
	HTTPObserver      middleware.HTTPObserver // nilの場合はHTTPメトリクスを記録しない

	// 認証
	AuthService   AuthServiceInterface
	SessionCookie SessionCookieStore
	LoginRecorder LoginRecorder

	// エントリー
	EntryService EntryServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 画面
	StaticDir string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合は /metrics を公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Classify
//	  保護API: Auth → RateLimit(General) → CSRF
//	  認証API: RateLimit(Login)
//
// 認証の判定はAuthミドルウェアのみが行い、個々のハンドラーはコンテキストのPrincipalを参照する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPObserver != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPObserver))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecureHeaders))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewClassifyMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionCookie, deps.LoginRecorder)
	entryHandler := NewEntryHandler(deps.EntryService)
	userHandler := NewUserHandler(deps.UserService, deps.SessionCookie)
	pageHandler := NewPageHandler(deps.Authenticator, deps.StaticDir)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// パスワード認証（IP単位のレート制限）
	r.Route("/api/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// Google OAuth
	r.Route("/auth/google", func(r chi.Router) {
		r.Get("/", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.GoogleCallback)
	})

	// 画面
	r.Get("/", pageHandler.Root)
	r.Get("/login", pageHandler.Login)
	r.Get("/register", pageHandler.Register)
	r.Get("/logout", authHandler.LogoutPage)
	r.Handle("/js/*", pageHandler.Static())
	r.Handle("/css/*", pageHandler.Static())

	// --- 認証が必要な画面 ---
	r.With(deps.Authenticator.Middleware()).Get("/app", pageHandler.App)

	// --- 認証が必要なAPI ---
	// ミドルウェアスタック: Auth → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(deps.Authenticator.Middleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/api/me", authHandler.Me)

		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", entryHandler.List)
			r.Post("/", entryHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", entryHandler.Update)
				r.Delete("/", entryHandler.Delete)
			})
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
