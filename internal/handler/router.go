package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/classtime/internal/metrics"
	"github.com/hitoshi/classtime/internal/middleware"
)

// HealthChecker はヘルスチェックのためのインターフェース。
// sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	PrincipalFinder   middleware.PrincipalFinder
	TierResolver      middleware.TierResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// クラス
	ClassService ClassServiceInterface

	// 学科
	DepartmentLister DepartmentLister

	// 時間記録
	RecordService RecordServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 監視
	HealthChecker HealthChecker
	Metrics       *metrics.Collector
	MetricsReg    prometheus.Gatherer
	Logger        *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → CORS → Recovery → Logging → Session
//
// /api/* はさらに RequireAccess → RateLimit(General) → CSRF で保護する。
// 認証ルート（/auth/*）はアクセス階層評価の外に配置する
// （/auth/meは非認可階層もレスポンスとして返すため）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// メトリクス記録はLoggingMiddleware経由（nil可）
	var statusRecorder middleware.StatusRecorder
	if deps.Metrics != nil {
		statusRecorder = deps.Metrics
	}

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, statusRecorder))
	r.Use(middleware.NewSessionMiddleware(deps.PrincipalFinder))

	authHandler := NewAuthHandler(deps.AuthService, deps.TierResolver, deps.UserService, deps.AuthConfig)
	classHandler := NewClassHandler(deps.ClassService, deps.Metrics)
	deptHandler := NewDepartmentHandler(deps.DepartmentLister)
	recordHandler := NewRecordHandler(deps.RecordService, deps.Metrics)
	userHandler := NewUserHandler(deps.UserService, UserHandlerConfig{
		CookieDomain: deps.AuthConfig.CookieDomain,
		CookieSecure: deps.AuthConfig.CookieSecure,
	})

	// --- アクセス階層評価の外のルート ---

	// ヘルスチェック
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.MetricsReg != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsReg))
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得（認可不要。トークンがないとPOSTできないため）
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認可済み階層のみのルート ---
	// ミドルウェアスタック: RequireAccess → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAccessMiddleware(deps.TierResolver, deps.UserService))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// クラス管理
		r.Route("/api/classes", func(r chi.Router) {
			r.Get("/", classHandler.ListClasses)

			// POST /api/classes - クラス作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.ClassCreationMiddleware()).Post("/", classHandler.CreateClass)

			r.Get("/{id}", classHandler.GetClass)
		})

		// 学科コード一覧
		r.Get("/api/departments", deptHandler.ListDepartments)

		// 時間記録
		r.Route("/api/records", func(r chi.Router) {
			r.Get("/", recordHandler.ListRecords)
			r.Post("/", recordHandler.AddRecord)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetProfile)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// newHealthHandler はヘルスチェックのハンドラーを返す。
// DB接続を確認し、到達できない場合は503を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
