// Package app はアプリケーションの初期化、依存関係のワイヤリング、サブコマンドの実行を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/feedview/internal/config"
	"github.com/hitoshi/feedview/internal/database"
	"github.com/hitoshi/feedview/internal/feed"
	"github.com/hitoshi/feedview/internal/handler"
	"github.com/hitoshi/feedview/internal/item"
	"github.com/hitoshi/feedview/internal/logger"
	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/middleware"
	"github.com/hitoshi/feedview/internal/repository"
	"github.com/hitoshi/feedview/internal/security"
	"github.com/hitoshi/feedview/internal/worker/refresh"
)

// shutdownTimeout はグレースフルシャットダウンの最大待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	l := logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, l, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	l = logger.SetupDefault(w, cfg.LogLevel)

	return cfg, l, nil
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

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("feed_url", cfg.FeedURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, l, ParseMigrateAction(args[1:]))
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, l)
	}
}

// server はserveモードで起動するコンポーネント一式。
type server struct {
	handler     http.Handler
	scheduler   *refresh.Scheduler
	rateLimiter *middleware.RateLimiter
}

// newServer は設定とスナップショットの保存先から全依存関係をワイヤリングする。
func newServer(cfg *config.Config, l *slog.Logger, snapshots repository.SnapshotRepository) *server {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. セキュリティサービス
	ssrfGuard := security.NewSSRFGuard(cfg.AllowPrivateFeed)
	classifier := security.NewSafetyClassifier()
	excerpts := security.NewExcerptService()

	// 3. フィードの取得とフィルタ
	provider := feed.NewHTTPProvider(feed.ProviderConfig{
		FeedURL:     cfg.FeedURL,
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
		MaxAttempts: uint(max(cfg.FetchMaxAttempts, 1)),
		RetryDelay:  cfg.FetchRetryDelay,
	}, ssrfGuard, collector, l)
	assembler := feed.NewAssembler(classifier, collector, l, cfg.ClassifyMaxConcurrent)
	feedService := feed.NewFeedService(provider, assembler, snapshots, collector, l, cfg.CacheTTL)

	// 4. 表示用サービス
	itemService := item.NewItemService(feedService, excerpts, cfg.DisplayTimezone)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitPerMinute),
		l,
	)
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            l,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ItemService:       itemService,
		Gatherer:          reg,
		CookieSecure:      cfg.CookieSecure,
	})

	return &server{
		handler:     router,
		scheduler:   refresh.NewScheduler(feedService, l),
		rateLimiter: rateLimiter,
	}
}

// openSnapshots はDATABASE_URLに応じてスナップショットの保存先を開く。
// 返されるclose関数は呼び出し側で必ず呼ぶこと。
func openSnapshots(ctx context.Context, cfg *config.Config, l *slog.Logger) (repository.SnapshotRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		l.Info("DATABASE_URL is not set; snapshots are kept in memory")
		return repository.NewMemorySnapshotRepo(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	l.Info("database connection established")
	return repository.NewPostgresSnapshotRepo(db, cfg.SnapshotRetention), func() { db.Close() }, nil
}

// runServe はWebサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERMを受信する）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	snapshots, closeSnapshots, err := openSnapshots(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	srv := newServer(cfg, l, snapshots)
	defer srv.rateLimiter.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		srv.scheduler.Start(workerCtx, cfg.RefreshInterval)
	}()

	errCh := make(chan error, 1)
	go func() {
		l.Info("HTTP server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			cancelWorker()
			<-workerDone
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	l.Info("shutting down HTTP server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-workerDone

	l.Info("HTTP server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, l *slog.Logger, action MigrateAction) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	l.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		l.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
