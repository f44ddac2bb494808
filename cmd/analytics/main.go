package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/application"
	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
	"github.com/wyfcoding/portfoliorisk/internal/analytics/infrastructure/messaging"
	mysqlrepo "github.com/wyfcoding/portfoliorisk/internal/analytics/infrastructure/persistence/mysql"
	rediscache "github.com/wyfcoding/portfoliorisk/internal/analytics/infrastructure/persistence/redis"
	analyticshttp "github.com/wyfcoding/portfoliorisk/internal/analytics/interfaces/http"
	"github.com/wyfcoding/portfoliorisk/pkg/cache"
	"github.com/wyfcoding/portfoliorisk/pkg/config"
	"github.com/wyfcoding/portfoliorisk/pkg/db"
	"github.com/wyfcoding/portfoliorisk/pkg/logger"
	"github.com/wyfcoding/portfoliorisk/pkg/metrics"
	"github.com/wyfcoding/portfoliorisk/pkg/middleware"
	"github.com/wyfcoding/portfoliorisk/pkg/mq"
	"github.com/wyfcoding/portfoliorisk/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/analytics/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	ctx := context.Background()
	logger.Info(ctx, "Starting analytics service", "environment", cfg.Environment)

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}
	defer database.Close()

	if err := database.AutoMigrate(&domain.RiskSnapshot{}, &domain.FrontierSnapshot{}); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 4. Redis
	redisCache, err := cache.New(cfg.Redis)
	if err != nil {
		panic(fmt.Sprintf("connect redis failed: %v", err))
	}
	defer redisCache.Close()

	// 5. Kafka
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		panic(fmt.Sprintf("create kafka producer failed: %v", err))
	}
	defer producer.Close()

	// 6. Metrics
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			panic(fmt.Sprintf("register metrics failed: %v", err))
		}
	}

	// 7. Application
	appService := application.NewAnalyticsService(
		rediscache.NewResultCache(redisCache),
		mysqlrepo.NewSnapshotRepository(database.DB),
		messaging.NewKafkaEventPublisher(producer),
		m,
		application.Options{
			CacheTTL:          time.Duration(cfg.Analytics.CacheTTL) * time.Second,
			MaxSimulations:    cfg.Analytics.MaxSimulations,
			SimulationTimeout: time.Duration(cfg.Analytics.SimulationTimeout) * time.Second,
		},
	)

	// 8. Interfaces
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinRecovery(), middleware.GinLogging())
	if cfg.HTTP.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		router.Use(middleware.GinRateLimit(limiter, cfg.HTTP.RateLimit))
	}

	handler := analyticshttp.NewAnalyticsHandler(appService)
	handler.RegisterRoutes(router)

	sys := router.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	pp := router.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	// 9. Start
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 10. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(ctx, "Shutting down server...")
		case <-gctx.Done():
			logger.Info(ctx, "Context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
	logger.Info(ctx, "Analytics service stopped")
}
