package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"cart-recovery-service/controllers"
	"cart-recovery-service/database"
	"cart-recovery-service/feed"
	"cart-recovery-service/logger"
	"cart-recovery-service/middleware"
	"cart-recovery-service/models"
	awspkg "cart-recovery-service/pkg/aws"
	"cart-recovery-service/repository"
	"cart-recovery-service/routes"
	"cart-recovery-service/sender"
	"cart-recovery-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const markerTimeout = 10 * time.Second

func main() {
	testMode := pflag.Bool("test", false, "use a 10 second abandonment timeout")
	debug := pflag.Bool("debug", false, "log every session decision and a summary after each check")
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	log := logger.Initialize(getEnv("APP_ENV", "development"), *debug, nil)

	cfg, err := LoadConfig(Options{TestMode: *testMode, Debug: *debug})
	if err != nil {
		log.Fatal("Config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AWS (non-fatal)
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.NeedsAWS() {
		if awsCfg, err = awspkg.LoadAWSConfig(ctx); err != nil {
			log.Warn("AWS config load failed (non-fatal)", zap.Error(err))
		} else {
			awsReady = true
		}
	}

	if cfg.CloudWatchEnabled && awsReady {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, routes.ServiceName)
		if err != nil {
			log.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		} else {
			log = logger.Initialize(cfg.Env, cfg.Debug, cwLogs)
		}
	} else if cfg.Debug != *debug {
		log = logger.Initialize(cfg.Env, cfg.Debug, nil)
	}
	defer log.Sync()

	metricsClient := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled && awsReady)
	var publisher awspkg.SNSPublisher
	if cfg.SNSTopicArn != "" && awsReady {
		publisher = awspkg.NewSNSClient(awsCfg)
	}

	// Database
	if err := database.Connect(cfg.Database(), log); err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	auditRepo := repository.NewAlertLogRepository(database.DB)

	models.SetLocalZone(cfg.DashboardTZ)

	// Feed and marker store
	var redisClient *redis.Client
	var sessionFeed feed.SessionFeed
	var markers repository.MarkerStore
	firebase := feed.FirebaseConfig{BaseURL: cfg.FirebaseURL, Path: cfg.FirebasePath, AuthToken: cfg.FirebaseAuth}

	switch cfg.FeedMode {
	case FeedRedis:
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		sessionFeed = feed.NewRedisFeed(redisClient, log)
		markers = repository.NewRedisMarkerStore(redisClient)
	case FeedPoll:
		sessionFeed = feed.NewPoller(firebase, cfg.PollInterval, log)
		markers = repository.NewFirebaseMarkerStore(cfg.FirebaseURL, cfg.FirebasePath, cfg.FirebaseAuth, markerTimeout)
	default:
		sessionFeed = feed.NewFirebaseStream(firebase, log)
		markers = repository.NewFirebaseMarkerStore(cfg.FirebaseURL, cfg.FirebasePath, cfg.FirebaseAuth, markerTimeout)
	}

	slack, err := sender.NewSlackSender(cfg.SlackWebhookURL, cfg.SlackTimeout, sender.WithRateLimit(rate.Limit(cfg.SlackRate), 1))
	if err != nil {
		log.Fatal("Failed to init Slack sender", zap.Error(err))
	}

	// Dependency injection
	store := services.NewSnapshotStore()
	monitor, err := services.NewMonitorService(
		services.MonitorConfig{
			Timeout:      cfg.Timeout,
			Debug:        cfg.Debug,
			SummaryEvery: cfg.SummaryEvery,
			SNSTopicArn:  cfg.SNSTopicArn,
		},
		services.MonitorDeps{
			Sender:    slack,
			Markers:   markers,
			Cache:     services.NewNotifiedCache(),
			AuditLog:  auditRepo,
			Publisher: publisher,
			Metrics:   metricsClient,
			Store:     store,
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize monitor", zap.Error(err))
	}

	log.Info("Monitor started",
		zap.String("feed", cfg.FeedMode),
		zap.Duration("timeout", cfg.Timeout),
		zap.Bool("test_mode", cfg.TestMode),
		zap.Bool("debug", cfg.Debug),
	)

	unsubscribe, err := sessionFeed.Subscribe(ctx, func(ctx context.Context, snapshot models.Snapshot) {
		monitor.ProcessSnapshot(ctx, snapshot)
	})
	if err != nil {
		log.Fatal("Failed to subscribe to checkout sessions", zap.Error(err))
	}

	// HTTP server
	var srv *http.Server
	if cfg.APIEnabled {
		srv = &http.Server{Addr: ":" + cfg.Port, Handler: newRouter(ctx, cfg, log, metricsClient, routes.Controllers{
			Monitor:       controllers.NewMonitorController(monitor, store),
			Dashboard:     controllers.NewDashboardController(services.NewDashboardService(store, cfg.Timeout, cfg.DashboardTZ, nil, log)),
			Notifications: controllers.NewNotificationController(services.NewNotificationLogService(auditRepo, log), log),
		})}
		go func() {
			log.Info("Operator API started", zap.String("port", cfg.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	unsubscribe()
	cancel()

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", zap.Error(err))
		}
	}

	monitor.LogSummary(true)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Redis close error", zap.Error(err))
		}
	}
	if err := database.Close(); err != nil {
		log.Error("Database close error", zap.Error(err))
	}
}

func newRouter(ctx context.Context, cfg *Config, log *zap.Logger, metrics awspkg.MetricsRecorder, c routes.Controllers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, routes.ServiceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(ctx, middleware.PerMinute(cfg.RateLimitPerMinute), 20, 5*time.Minute)))
	r.Use(middleware.RequestTimeout(30 * time.Second))

	routes.RegisterRoutes(r, c)
	return r
}
