package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"argus/config"
	"argus/correlate"
	"argus/service"
	"argus/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanLockTTL bounds how long a crashed instance can block scans.
const scanLockTTL = 10 * time.Minute

// App holds the wired application components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite    *storage.SQLite
	Store     *storage.ThreatStore
	Rules     *service.RuleService
	Engine    *correlate.Engine
	Scheduler *service.ScanScheduler

	redisClient   *redis.Client
	metricsServer *http.Server
}

// NewApp loads configuration and initializes every component.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, sugar, err := InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar.Info("argus starting...")

	sqlite, err := storage.NewSQLite(cfg.SQLitePath(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Sugar:  sugar,
		SQLite: sqlite,
	}

	app.Store = storage.NewThreatStore(sqlite, sugar)
	app.Engine = correlate.NewEngine(app.Store, &cfg.Correlation, sugar)

	app.Rules = service.NewRuleService(sugar)
	if _, err := app.Rules.LoadRules(cfg.Rules.Directory); err != nil {
		sugar.Warnw("Rule loading failed, matching is disabled", "directory", cfg.Rules.Directory, "error", err)
	}

	locker, err := app.initLocker(ctx)
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}
	app.Scheduler = service.NewScanScheduler(app.Engine, locker, cfg.Scan.Interval, cfg.Scan.OnDemandPerMinute, sugar)

	return app, nil
}

func (a *App) initLocker(ctx context.Context) (service.Locker, error) {
	if a.Config.Scan.Lock.Backend != "redis" {
		return service.NewLocalLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Scan.Lock.Addr,
		Password: a.Config.Scan.Lock.Password,
		DB:       a.Config.Scan.Lock.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.Scan.Lock.Addr, err)
	}
	a.redisClient = client
	a.Sugar.Infow("Using redis scan lock", "addr", a.Config.Scan.Lock.Addr)
	return service.NewRedisLocker(client, "argus:scan_lock", scanLockTTL), nil
}

// Start launches the scan scheduler and the metrics endpoint.
func (a *App) Start() error {
	a.Scheduler.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{Addr: a.Config.Metrics.Addr, Handler: mux}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Sugar.Errorw("Metrics server failed", "error", err)
		}
	}()
	a.Sugar.Infow("Metrics endpoint listening", "addr", a.Config.Metrics.Addr)

	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	a.Sugar.Info("Shutdown signal received")
}

// Shutdown stops all components, waiting for an in-flight scan to commit.
func (a *App) Shutdown() {
	a.Scheduler.Stop()

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if err := a.SQLite.Close(); err != nil {
		a.Sugar.Warnw("Failed to close database", "error", err)
	}
	_ = a.Logger.Sync()
	a.Sugar.Info("argus stopped")
}
