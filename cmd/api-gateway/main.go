package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-placement-api/api/swagger"
	"github.com/noah-isme/campus-placement-api/internal/handler"
	"github.com/noah-isme/campus-placement-api/internal/middleware"
	"github.com/noah-isme/campus-placement-api/internal/repository"
	"github.com/noah-isme/campus-placement-api/internal/service"
	"github.com/noah-isme/campus-placement-api/pkg/cache"
	"github.com/noah-isme/campus-placement-api/pkg/config"
	"github.com/noah-isme/campus-placement-api/pkg/database"
	"github.com/noah-isme/campus-placement-api/pkg/export"
	"github.com/noah-isme/campus-placement-api/pkg/jobs"
	"github.com/noah-isme/campus-placement-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-placement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-placement-api/pkg/middleware/requestid"
)

// @title Campus Placement API
// @version 1.0.0
// @description Eligibility snapshots, overrides and round-funnel progression
// @BasePath /
// @schemes http

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

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Snapshot.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Snapshot.CacheTTL, logr, true)
	}

	rosterRepo := repository.NewRosterRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	roundRepo := repository.NewRoundRepository(db)

	// The queue handler closes over the reconcile service, which in turn
	// holds the queue for enqueueing. Build the service after the queue.
	var reconcileSvc *service.ReconcileService
	queue := jobs.NewQueue("placement-updates", func(ctx context.Context, job jobs.Job) error {
		return reconcileSvc.ApplyPlacementUpdate(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	reconcileSvc = service.NewReconcileService(rosterRepo, queue, logr)
	metricsSvc.RegisterQueueDepth("placement-updates", queue.Depth)

	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queue.Start(queueCtx)
	defer queue.Stop()

	rosterSvc := service.NewRosterService(rosterRepo, nil, logr)
	snapshotSvc := service.NewSnapshotService(snapshotRepo, rosterRepo, companyRepo, cacheSvc, logr)
	funnelSvc := service.NewFunnelService(roundRepo, companyRepo, snapshotRepo, reconcileSvc, cacheSvc, nil, logr)
	exportSvc := service.NewExportService(snapshotSvc, funnelSvc, rosterRepo, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	rosterHandler := handler.NewRosterHandler(rosterSvc)
	snapshotHandler := handler.NewSnapshotHandler(snapshotSvc)
	roundHandler := handler.NewRoundHandler(funnelSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "down"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/students", rosterHandler.List)
	api.GET("/students/:id", rosterHandler.Get)
	api.GET("/companies/:companyId/batches/:year/snapshot", snapshotHandler.Get)
	api.GET("/companies/:companyId/batches/:year/snapshot/export", exportHandler.SnapshotReport)
	api.GET("/positions/:positionId/rounds", roundHandler.List)
	api.GET("/positions/:positionId/rounds/export", exportHandler.FunnelReport)

	mutating := api.Group("")
	if cfg.JWT.Enabled {
		mutating.Use(middleware.JWT(cfg.JWT.Secret))
	}

	mutating.PATCH("/students/:id/placement", rosterHandler.UpdatePlacement)
	mutating.POST("/students/registrations/extract", rosterHandler.ExtractRegistrations)

	mutating.POST("/companies/:companyId/batches/:year/snapshot", snapshotHandler.Calculate)
	mutating.PUT("/companies/:companyId/batches/:year/snapshot", snapshotHandler.Replace)
	mutating.POST("/snapshots/:id/overrides/dream", snapshotHandler.ApplyDreamOverride)
	mutating.POST("/snapshots/:id/overrides/manual", snapshotHandler.ApplyManualOverride)
	mutating.DELETE("/snapshots/:id/overrides/:studentId", snapshotHandler.RemoveOverride)

	mutating.POST("/positions/:positionId/rounds", roundHandler.Create)
	mutating.POST("/rounds/:id/applications", roundHandler.RecordApplications)
	mutating.POST("/rounds/:id/attendance", roundHandler.RecordAttendance)
	mutating.POST("/rounds/:id/results", roundHandler.RecordResults)
	mutating.POST("/rounds/:id/results/preview", roundHandler.PreviewResults)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
