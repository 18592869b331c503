package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/jobdash/internal/config"
	"github.com/hitoshi/jobdash/internal/database"
	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/editor"
	"github.com/hitoshi/jobdash/internal/feed"
	"github.com/hitoshi/jobdash/internal/handler"
	"github.com/hitoshi/jobdash/internal/jd"
	"github.com/hitoshi/jobdash/internal/logger"
	"github.com/hitoshi/jobdash/internal/metrics"
	"github.com/hitoshi/jobdash/internal/middleware"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/outreach"
	"github.com/hitoshi/jobdash/internal/repository"
	"github.com/hitoshi/jobdash/internal/scan"
	"github.com/hitoshi/jobdash/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// storeConnectTimeout はストアへの初回疎通確認の待ち時間。
const storeConnectTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定ファイルと環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("backend", cfg.Backend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// application はserveモードで動作するコンポーネント一式。
type application struct {
	store      docstore.Store
	registry   *prometheus.Registry
	collector  *metrics.Collector
	board      *feed.Board
	assembler  *jd.Assembler
	controller *editor.Controller
	hub        *handler.StreamHub
	limiter    *middleware.RateLimiter
	router     http.Handler
	logger     *slog.Logger
}

// newApplication はストアを起点に全依存関係をワイヤリングする。
// ストア操作はすべてメトリクス付きのデコレータを経由する。
func newApplication(store docstore.Store, cfg *config.Config, log *slog.Logger) *application {
	if log == nil {
		log = slog.Default()
	}

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)
	instrumented := docstore.NewInstrumented(store, collector)

	// 2. リポジトリの初期化
	postingRepo := repository.NewDocstorePostingRepo(instrumented)
	summaryRepo := repository.NewDocstoreSummaryRepo(instrumented)
	satelliteRepo := repository.NewDocstoreSatelliteRepo(instrumented)
	outreachRepo := repository.NewDocstoreOutreachRepo(instrumented)
	profileRepo := repository.NewDocstoreProfileRepo(instrumented)
	scanRepo := repository.NewDocstoreScanRepo(instrumented)

	// 3. ドメインサービスの初期化
	feedService := feed.NewService(postingRepo, collector, log)
	board := feed.NewBoard(feedService)

	assembler := jd.NewAssembler(summaryRepo, satelliteRepo, collector, log, cfg.AssembleConcurrency)
	controller := editor.NewController(summaryRepo, satelliteRepo, editor.Options{
		Domains: cfg.Domains,
		Levels:  cfg.Levels,
	}, log)

	outreachLogger := outreach.NewLogger(outreachRepo, profileRepo, collector, log)
	scanBridge := scan.NewBridge(scanRepo, security.NewJDSanitizer(), log)

	// 4. ライブ配信とミドルウェア
	hub := handler.NewStreamHub(cfg.CORSAllowedOrigin, collector, log)
	limiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite), log,
	)

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,

		HealthChecker:   store,
		MetricsGatherer: registry,

		FeedBoard:       board,
		DisplayLocation: cfg.DisplayTimezone,

		Controller:   controller,
		ScanImporter: scanBridge,
		Stream:       hub,

		Outreach: outreachLogger,
	})

	return &application{
		store:      store,
		registry:   registry,
		collector:  collector,
		board:      board,
		assembler:  assembler,
		controller: controller,
		hub:        hub,
		limiter:    limiter,
		router:     router,
		logger:     log,
	}
}

// start はJDサマリーのライブ購読を開始する。
// 組み立てが終わるたびに一覧をエディタへ渡し、接続中のクライアントへ配信する。
func (a *application) start(ctx context.Context) (docstore.Subscription, error) {
	return a.assembler.Subscribe(ctx, func(records []*model.CompositeRecord) {
		a.controller.Update(records)
		a.hub.Broadcast(records)
		a.logger.Debug("JDレコード一覧を更新しました", slog.Int("records", len(records)))
	})
}

// close はバックグラウンド処理を停止する。ストアのクローズは呼び出し側で行う。
func (a *application) close() {
	a.hub.Close()
	a.limiter.Stop()
}

// openStore は設定されたバックエンドのドキュメントストアを開き、疎通を確認する。
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.OpenAndPing(ctx, cfg.DatabaseURL, storeConnectTimeout)
		if err != nil {
			return nil, err
		}
		slog.Info("database connection established")
		return docstore.NewPostgresStore(db, docstore.PostgresConfig{
			DatabaseURL:  cfg.DatabaseURL,
			MinReconnect: cfg.ListenerMinReconnect,
			MaxReconnect: cfg.ListenerMaxReconnect,
		}, log), nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		store := docstore.NewRedisStore(redis.NewClient(opts), cfg.RedisPrefix, log)

		pingCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		slog.Info("redis connection established", slog.String("prefix", cfg.RedisPrefix))
		return store, nil

	case config.BackendMemory:
		slog.Warn("using in-memory document store; data is lost on exit")
		return docstore.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported docstore backend: %q", cfg.Backend)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、JDサマリーの購読とHTTPサーバーを開始する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. ストア接続
	store, err := openStore(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open docstore: %w", err)
	}
	defer store.Close()

	// 2. ワイヤリングと購読開始
	a := newApplication(store, cfg, slog.Default())
	defer a.close()

	sub, err := a.start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start JD subscription: %w", err)
	}
	defer sub.Cancel()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	// 購読とライブ配信を先に止め、停止中に組み立て結果が配信されないようにする
	sub.Cancel()
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はdocumentsテーブルのマイグレーションを実行する。
// postgresバックエンド以外ではスキーマを持たないため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.Backend != config.BackendPostgres {
		slog.Info("migrations are only required for the postgres backend",
			slog.String("backend", cfg.Backend),
		)
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
