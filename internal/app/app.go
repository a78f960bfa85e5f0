package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/config"
	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/gateway"
	"github.com/Umairyojo/NexMark/internal/httpserver"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/redis"
	"github.com/Umairyojo/NexMark/internal/scheduler"
	"github.com/Umairyojo/NexMark/internal/sources/homepage"
	redisstore "github.com/Umairyojo/NexMark/internal/store/redis"
	"github.com/Umairyojo/NexMark/internal/store/sqlite"
	"github.com/Umairyojo/NexMark/internal/version"
	"github.com/Umairyojo/NexMark/internal/view"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	baseCtx      context.Context
	cancelViews  context.CancelFunc
	server       *httpserver.Server
	redisClient  *goredis.Client
	data         dataservice.Service
	bus          broadcast.Bus
	auth         *auth.Manager
	views        *view.Registry
	homepageSync *scheduler.HomepageSync
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	redisClient, data, err := OpenData(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open data service: %v", err)
		os.Exit(1)
	}

	var bus broadcast.Bus
	switch cfg.Broadcast {
	case config.BroadcastRedis:
		bus = broadcast.NewRedisBus(redisClient, broadcast.DefaultBuffer, loggerClient)
	default:
		bus = broadcast.NewMemoryBus(broadcast.DefaultBuffer, loggerClient)
	}
	loggerClient.Info("broadcast bus ready", logger.String("mode", cfg.Broadcast))

	// Discovery reaches the provider, fail fast if it is unreachable
	discoveryCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	provider, err := auth.NewOIDCProvider(discoveryCtx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	cancel()
	if err != nil {
		loggerClient.Errorf("Failed to initialize sign-in provider: %v", err)
		os.Exit(1)
	}
	sessions, err := auth.NewSessionCodec([]byte(cfg.SessionSecret), cfg.SessionTTL, cfg.CookieSecure)
	if err != nil {
		loggerClient.Errorf("Failed to initialize sessions: %v", err)
		os.Exit(1)
	}
	authManager := auth.NewManager(provider, sessions, loggerClient)

	views := view.NewRegistry()

	// Homepage sync (optional)
	var homepageSync *scheduler.HomepageSync
	var homepageTrigger chan struct{}
	if cfg.HomepageFile != "" {
		loggerClient.Info("homepage file configured, initializing homepage sync",
			logger.String("file", cfg.HomepageFile),
			logger.String("user_id", cfg.HomepageUser))
		homepageTrigger = make(chan struct{}, 1)
		importer := homepage.NewImporter(data, gateway.New(data, nil, nil, loggerClient), loggerClient)
		homepageSync = scheduler.NewHomepageSync(
			cfg.HomepageFile,
			cfg.HomepageUser,
			importer,
			loggerClient,
			cfg.HomepageSyncInterval,
			homepageTrigger,
		)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Build:            version.Get(),
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		RateBurst:        cfg.RateBurst,
		RateRefillPerMin: cfg.RateRefillPerMin,
		Backend:          cfg.Backend,
		Broadcast:        cfg.Broadcast,
		Data:             data,
		Bus:              bus,
		Auth:             authManager,
		Views:            views,
		HomepageTrigger:  homepageTrigger,
	}

	baseCtx, cancelViews := context.WithCancel(context.Background())
	server := httpserver.New(baseCtx, cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		baseCtx:      baseCtx,
		cancelViews:  cancelViews,
		server:       server,
		redisClient:  redisClient,
		data:         data,
		bus:          bus,
		auth:         authManager,
		views:        views,
		homepageSync: homepageSync,
	}
}

// OpenData connects the configured data service. The Redis client is
// returned when any component needs it, even with the sqlite backend.
func OpenData(ctx context.Context, cfg *config.Config, log logger.Logger) (*goredis.Client, dataservice.Service, error) {
	var client *goredis.Client
	if cfg.NeedsRedis() {
		// Initialize Redis early - fail fast if unavailable
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		c, err := redis.New(ctx, redis.OptionsFromConfig(cfg), log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		client = c
		log.Info("Redis initialized successfully")
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			if client != nil {
				_ = client.Close()
			}
			return nil, nil, err
		}
		log.Info("SQLite data service ready", logger.String("path", cfg.SQLitePath))
		return client, store, nil
	default:
		return client, redisstore.NewStore(client, log), nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting NexMark %s on %s", version.Get(), a.cfg.ListenPort)

	ctx, stop := signal.NotifyContext(a.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start homepage sync (imports once, then on each interval)
	if a.homepageSync != nil {
		if err := a.homepageSync.Start(ctx); err != nil {
			return fmt.Errorf("failed to start homepage sync: %w", err)
		}
		a.logger.Info("homepage sync started",
			logger.Duration("interval", a.cfg.HomepageSyncInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	// Stop homepage sync
	if a.homepageSync != nil {
		a.homepageSync.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Websocket views are hijacked, Shutdown does not wait for them
	a.cancelViews()
	a.waitViews(shutdownCtx)

	a.auth.Close()
	if err := a.bus.Close(); err != nil {
		a.logger.Warnf("failed to close broadcast bus: %v", err)
	}

	if err := a.data.Close(); err != nil {
		a.logger.Warnf("failed to close data service: %v", err)
	} else {
		a.logger.Info("✅ Data service closed cleanly")
	}
	// The redis store owns the client it was built on
	if a.redisClient != nil && a.cfg.Backend != config.BackendRedis {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ NexMark stopped cleanly")
	return nil
}

func (a *App) waitViews(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for a.views.Len() > 0 {
		select {
		case <-ctx.Done():
			a.logger.Warn("live views still open at shutdown", logger.Int("views", a.views.Len()))
			return
		case <-ticker.C:
		}
	}
}
