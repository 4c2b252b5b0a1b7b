package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/escolab/agenda-api/api/swagger"
	"github.com/escolab/agenda-api/internal/handler"
	"github.com/escolab/agenda-api/internal/middleware"
	"github.com/escolab/agenda-api/internal/models"
	"github.com/escolab/agenda-api/internal/repository"
	"github.com/escolab/agenda-api/internal/service"
	"github.com/escolab/agenda-api/pkg/cache"
	"github.com/escolab/agenda-api/pkg/calendar"
	"github.com/escolab/agenda-api/pkg/config"
	"github.com/escolab/agenda-api/pkg/database"
	"github.com/escolab/agenda-api/pkg/events"
	"github.com/escolab/agenda-api/pkg/jobs"
	"github.com/escolab/agenda-api/pkg/logger"
	corsmiddleware "github.com/escolab/agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/escolab/agenda-api/pkg/middleware/requestid"
)

// @title Agenda API
// @version 1.0.0
// @description Scheduling service for educational events: request workflow, calendar synchronisation, availability and material collections.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cross-process sync locks disabled", "error", err)
	} else {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requestRepo := repository.NewRequestRepository(db)
	eventRepo := repository.NewCalendarEventRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	referenceRepo := repository.NewCachedReferenceRepository(repository.NewReferenceRepository(db), cacheRepo, cfg.Cache.ReferenceTTL)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	lockRepo := repository.NewSyncLockRepository(redisClient, logr)

	var notifier *events.Publisher
	if cfg.EventBus.Enabled {
		notifier = events.NewPublisher(cfg.EventBus.URL, cfg.EventBus.Queue, logr)
	}
	defer notifier.Close()

	metricsSvc := service.NewMetricsService()
	accessSvc := service.NewAccessService(service.AccessConfig{Secret: cfg.JWT.Secret})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, metricsSvc, logr)
	provider := calendar.NewClient(cfg.Calendar, logr)
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := provider.Ping(pingCtx); err != nil {
		logr.Sugar().Warnw("calendar provider unreachable, sync attempts will retry", "error", err)
	}
	cancelPing()

	syncSvc := service.NewSyncService(
		requestRepo,
		eventRepo,
		referenceRepo,
		provider,
		lockRepo,
		nil,
		auditRepo,
		notifier,
		metricsSvc,
		db,
		logr,
		service.SyncServiceConfig{
			MaxAttempts:   cfg.Sync.MaxAttempts,
			BackoffBase:   cfg.Sync.BackoffBase,
			BackoffCap:    cfg.Sync.BackoffCap,
			LockTTL:       cfg.Sync.LockTTL,
			RetryCooldown: cfg.Sync.RetryCooldown,
			SweepInterval: cfg.Sync.SweepInterval,
		},
	)

	syncQueue := jobs.NewQueue("calendar-sync", syncSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		BufferSize: cfg.Sync.QueueSize,
		Logger:     logr,
	})
	syncSvc.AttachQueue(syncQueue)
	syncQueue.Start(ctx)
	syncSvc.RecoverPending(ctx)
	if cfg.Sync.SweeperEnabled {
		syncSvc.StartSweeper(ctx)
	}

	requestSvc := service.NewRequestService(
		requestRepo,
		eventRepo,
		referenceRepo,
		availabilitySvc,
		syncSvc,
		auditRepo,
		notifier,
		db,
		nil,
		logr,
	)
	purchaseSvc := service.NewPurchaseService(purchaseRepo, collectionRepo, referenceRepo, auditRepo, db, nil, logr)

	requestHandler := handler.NewRequestHandler(requestSvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(accessSvc))

	requests := api.Group("/requests")
	requests.Use(middleware.Audit(auditRepo, "request"))
	{
		requests.POST("", middleware.RequireCapability(models.CapabilitySubmitRequests), requestHandler.Create)
		requests.GET("", middleware.RequireCapability(models.CapabilityViewRequests), requestHandler.List)
		requests.GET("/:id", middleware.RequireCapability(models.CapabilityViewRequests), requestHandler.Get)
		requests.POST("/:id/decision", middleware.RequireCapability(models.CapabilityApproveRequests), requestHandler.Decide)
		requests.POST("/:id/cancel", middleware.RequireCapability(models.CapabilityCancelRequests), requestHandler.Cancel)
		requests.POST("/:id/resync", middleware.RequireCapability(models.CapabilityOperateSync), syncHandler.Resync)
	}

	api.GET("/calendar-events", middleware.RequireCapability(models.CapabilityOperateSync), syncHandler.ListEvents)
	api.GET("/availability/conflicts", middleware.RequireCapability(models.CapabilityViewRequests), availabilityHandler.Conflicts)

	purchases := api.Group("/purchases")
	purchases.Use(middleware.RequireCapability(models.CapabilityManagePurchases))
	purchases.Use(middleware.Audit(auditRepo, "purchase"))
	{
		purchases.POST("", purchaseHandler.Create)
		purchases.PUT("/:id", purchaseHandler.Update)
		purchases.GET("/:id", purchaseHandler.Get)
	}
	api.GET("/collections", middleware.RequireCapability(models.CapabilityManagePurchases), purchaseHandler.ListCollections)
	api.GET("/collections/export", middleware.RequireCapability(models.CapabilityManagePurchases), purchaseHandler.ExportCollections)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
	syncQueue.Stop()
}
