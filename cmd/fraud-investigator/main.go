package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/fraud-investigator/internal/fraud"
	"github.com/richxcame/fraud-investigator/internal/simulator"
	"github.com/richxcame/fraud-investigator/pkg/async"
	"github.com/richxcame/fraud-investigator/pkg/cache"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/config"
	"github.com/richxcame/fraud-investigator/pkg/database"
	"github.com/richxcame/fraud-investigator/pkg/errors"
	"github.com/richxcame/fraud-investigator/pkg/eventbus"
	"github.com/richxcame/fraud-investigator/pkg/health"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"github.com/richxcame/fraud-investigator/pkg/middleware"
	"github.com/richxcame/fraud-investigator/pkg/ratelimit"
	redisclient "github.com/richxcame/fraud-investigator/pkg/redis"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
	"github.com/richxcame/fraud-investigator/pkg/storage"
	"github.com/richxcame/fraud-investigator/pkg/tracing"
	"github.com/richxcame/fraud-investigator/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName = "fraud-investigator"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting fraud investigator",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig(serviceName, cfg.Server.Environment)
	if sentryConfig.Release == "" {
		sentryConfig.Release = version
	}
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Sentry disabled, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	tp, err := tracing.InitTracer(rootCtx, tracing.FromConfig(cfg, version), logger.Get())
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL()); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	db, err := database.NewPostgresPool(rootCtx, &cfg.Database, serviceName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	checker := health.NewDeepChecker(health.DeepCheckerConfig{
		Version:  version,
		Timeout:  2 * time.Second,
		CacheTTL: 5 * time.Second,
	})
	checker.AddDependency("database", health.PingFunc(db.Ping), true)

	newBreaker := func(name string) *resilience.CircuitBreaker {
		if !cfg.Resilience.CircuitBreaker.Enabled {
			return nil
		}
		cb := resilience.NewCircuitBreaker(resilience.SettingsFromConfig(name, cfg.Resilience.CircuitBreaker))
		checker.AddCircuitBreaker(name, cb)
		return cb
	}

	repo := fraud.NewRepository(db)
	assembler := fraud.NewAssembler(repo,
		fraud.WithLimits(cfg.Investigation.RecentAccountLimit, cfg.Investigation.ReuseLimit),
	)

	hub := websocket.NewHub()
	hubDone := async.Go(rootCtx, "websocket-hub", hub.Run)

	opts := []fraud.ServiceOption{
		fraud.WithBroadcaster(hub),
	}

	var rdb *redisclient.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.NewRedisClient(rootCtx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, serving reads without cache", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			checker.AddDependency("redis", rdb, false)
			opts = append(opts, fraud.WithCache(
				cache.NewManager(rdb),
				time.Duration(cfg.Redis.CaseTTL)*time.Second,
				time.Duration(cfg.Redis.StatsTTL)*time.Second,
			))
			logger.Info("Redis case cache enabled", zap.String("addr", cfg.Redis.RedisAddr()))
		}
	}

	if cfg.NATS.Enabled {
		bus, err := eventbus.New(rootCtx, eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		}, newBreaker("nats"))
		if err != nil {
			logger.Warn("NATS unavailable, events will not be published", zap.Error(err))
		} else {
			defer bus.Close()
			checker.AddDependency("nats", health.PingFunc(func(context.Context) error { return bus.Check() }), false)
			opts = append(opts, fraud.WithPublisher(bus))
			logger.Info("NATS event bus connected", zap.String("url", cfg.NATS.URL))
		}
	}

	if cfg.Storage.Enabled {
		client, err := storage.NewS3Client(rootCtx, cfg.Storage)
		if err != nil {
			logger.Warn("Report storage unavailable, keeping reports in the database only", zap.Error(err))
		} else {
			reports := storage.NewReportStore(client, cfg.Storage.Bucket, cfg.Storage.Prefix, newBreaker("s3"))
			checker.AddDependency("report_storage", reports, false)
			opts = append(opts, fraud.WithReportStore(reports))
			logger.Info("Case report storage enabled", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	service := fraud.NewService(repo, assembler, opts...)
	handler := fraud.NewHandler(service)

	background := []<-chan struct{}{hubDone}

	if cfg.Retention.Days > 0 {
		background = append(background, async.Go(rootCtx, "retention", func(ctx context.Context) {
			service.RunRetention(ctx, cfg.Retention.Days, cfg.Retention.Interval())
		}))
	}

	var sim *simulator.Worker
	if cfg.Simulator.Enabled {
		sim = simulator.NewWorker(service, logger.Named("simulator"), cfg.Simulator.TPS)
		seeded := async.GoWithCallback(rootCtx, "historical-seed", func(ctx context.Context) error {
			_, err := sim.SeedHistorical(ctx, repo, cfg.Simulator.SeedDays, cfg.Simulator.SeedTotal, cfg.Simulator.FlagPath)
			return err
		}, nil)
		// streaming starts after the seed whether or not it succeeded
		background = append(background, seeded, async.Go(rootCtx, "simulator", func(ctx context.Context) {
			<-seeded
			sim.Start(ctx)
		}))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics())
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", checker.ReadinessHandler())
	router.GET("/health/deep", checker.GinHandler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var auth gin.HandlerFunc
	if cfg.Auth.Disabled {
		logger.Warn("API authentication disabled")
	} else {
		auth = middleware.AuthMiddleware(cfg.Auth.JWTSecret)
	}
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if rdb == nil {
			logger.Warn("Rate limiting needs Redis, ingest is not throttled")
		} else {
			limiter = ratelimit.NewLimiter(rdb, cfg.RateLimit)
		}
	}
	var replays redisclient.ClientInterface
	if rdb != nil {
		replays = rdb
	}
	handler.RegisterRoutes(router, auth,
		middleware.RateLimit(limiter),
		middleware.Idempotency(replays, time.Duration(cfg.Redis.IdempotencyTTL)*time.Second),
	)

	if auth != nil {
		router.GET("/ws", auth, websocket.Handler(hub))
	} else {
		router.GET("/ws", websocket.Handler(hub))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if sim != nil {
		sim.Stop()
	}
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if !async.Wait(5*time.Second, background...) {
		logger.Warn("Background tasks did not stop in time")
	}

	logger.Info("Server stopped")
}
