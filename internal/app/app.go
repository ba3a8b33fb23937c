// Package app はアプリケーションの起動と依存関係のワイヤリングを担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/classtime/internal/auth"
	"github.com/hitoshi/classtime/internal/catalog"
	"github.com/hitoshi/classtime/internal/classreg"
	"github.com/hitoshi/classtime/internal/config"
	"github.com/hitoshi/classtime/internal/database"
	"github.com/hitoshi/classtime/internal/department"
	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/handler"
	"github.com/hitoshi/classtime/internal/logger"
	"github.com/hitoshi/classtime/internal/metrics"
	"github.com/hitoshi/classtime/internal/middleware"
	"github.com/hitoshi/classtime/internal/security"
	"github.com/hitoshi/classtime/internal/session"
	"github.com/hitoshi/classtime/internal/timelog"
	"github.com/hitoshi/classtime/internal/user"
	"github.com/hitoshi/classtime/internal/worker/stats"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandDepartments:
		return runDepartments(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ドキュメントストアの初期化
	store := docstore.NewPostgresStore(db)

	// 3. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 4. ドメインサービスの初期化
	deptRegistry := department.NewRegistry(store)
	sanitizer := security.NewNameSanitizer()
	classService := classreg.NewService(store, deptRegistry, sanitizer)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, store,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	userService := user.NewService(store)
	recordService := timelog.NewService(store)

	// 5. アクセス階層評価の初期化
	classifier := session.NewClassifier(cfg.PrimaryEmailDomain, cfg.SecondaryEmailDomain)
	provisioner := session.NewProvisioner(store)
	tierResolver := session.NewResolver(classifier, provisioner, collector)

	// 6. レートリミッターの構築（設定はreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ClassCreateRate = rate.Limit(float64(cfg.RateLimitClassCreate) / 60.0)
	rateLimiterCfg.ClassCreateBurst = cfg.RateLimitClassCreate
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		PrincipalFinder:   authService,
		TierResolver:      tierResolver,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ClassService:     classService,
		DepartmentLister: deptRegistry,
		RecordService:    recordService,
		UserService:      userService,

		HealthChecker: db,
		Metrics:       collector,
		MetricsReg:    reg,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は統計集計ワーカーモードで起動する。
// 起動直後に1回集計を実行し、以降はStatsIntervalごとに繰り返す。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 集計ジョブの初期化
	store := docstore.NewPostgresStore(db)
	job := stats.NewAggregateJob(store, slog.Default())

	// 3. メトリクスエンドポイント（ワーカーは別プロセスのため専用に公開する）
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(reg),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("stats worker starting",
		slog.Duration("interval", cfg.StatsInterval),
	)

	runOnce := func() {
		updated, err := job.Run(ctx)
		if err != nil {
			slog.Error("stats aggregation failed", slog.String("error", err.Error()))
			return
		}
		collector.RecordClassesAggregated(updated)
	}

	// 起動直後に1回実行
	runOnce()

	ticker := time.NewTicker(cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)

			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runDepartments は学科カタログページから学科コードの統制語彙を取り込む。
// 引数でカタログURLを指定できる。省略時はCATALOG_URLを使用する。
func runDepartments(cfg *config.Config, args []string) error {
	catalogURL := cfg.CatalogURL
	if len(args) > 0 {
		catalogURL = args[0]
	}
	if catalogURL == "" {
		return fmt.Errorf("catalog URL is required (argument or CATALOG_URL)")
	}

	// 取り込み先URLはSSRF対策の検証を通す
	guard := security.NewSSRFGuard()
	if err := guard.ValidateURL(catalogURL); err != nil {
		return fmt.Errorf("catalog URL rejected: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	store := docstore.NewPostgresStore(db)
	client := guard.NewSafeClient(cfg.CatalogTimeout, cfg.CatalogMaxSize)
	importer := catalog.NewImporter(client, store, cfg.CatalogMaxSize)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CatalogTimeout+30*time.Second)
	defer cancel()

	count, err := importer.Import(ctx, catalogURL)
	if err != nil {
		return fmt.Errorf("catalog import failed: %w", err)
	}

	slog.Info("department vocabulary imported",
		slog.String("catalog_url", catalogURL),
		slog.Int("codes", count),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
