package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/nadir-hamid/fst-exams-api/api/swagger"
	"github.com/nadir-hamid/fst-exams-api/internal/handler"
	"github.com/nadir-hamid/fst-exams-api/internal/middleware"
	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/internal/repository"
	"github.com/nadir-hamid/fst-exams-api/internal/service"
	"github.com/nadir-hamid/fst-exams-api/pkg/cache"
	"github.com/nadir-hamid/fst-exams-api/pkg/config"
	"github.com/nadir-hamid/fst-exams-api/pkg/database"
	"github.com/nadir-hamid/fst-exams-api/pkg/jobs"
	"github.com/nadir-hamid/fst-exams-api/pkg/logger"
	corsmiddleware "github.com/nadir-hamid/fst-exams-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nadir-hamid/fst-exams-api/pkg/middleware/requestid"
	"github.com/nadir-hamid/fst-exams-api/pkg/storage"
)

// @title FST Exams API
// @version 1.0.0
// @description Exam schedule, conflict detection and modification request service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fst-exams-api",
	})
	scheduleSvc := service.NewScheduleService(enrollmentRepo, examRepo, logr)
	detector := service.NewConflictDetector(cfg.Conflicts)
	conflictSvc := service.NewConflictService(scheduleSvc, detector, metricsSvc, logr)
	requestSvc := service.NewRequestService(
		requestRepo, roomRepo, cacheRepo, scheduleSvc, detector, userRepo, logr,
		cfg.Requests, cfg.Rooms.CacheTTL,
	)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, conflictSvc, requestSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	roomHandler := handler.NewRoomHandler(requestSvc)

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	students := protected.Group("/students/:id")
	students.Use(middleware.RBAC(
		string(models.RoleAdmin), string(models.RoleViceDean),
		string(models.RoleDepartmentHead), string(models.RoleProfessor),
		middleware.SelfAccess,
	))
	students.GET("/schedule", scheduleHandler.GetSchedule)
	students.GET("/conflicts", scheduleHandler.GetConflicts)
	students.GET("/exams/:examId/alternatives", scheduleHandler.GetAlternatives)

	protected.GET("/rooms", roomHandler.ListAvailable)

	requests := protected.Group("/requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.GET("/:id", requestHandler.Get)
	requests.POST("/:id/resolve",
		middleware.RequireRoles(models.RoleAdmin, models.RoleViceDean, models.RoleDepartmentHead),
		requestHandler.Resolve,
	)

	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(conflictSvc, enrollmentRepo, requestRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc := service.NewReportService(reportRepo, queue, exportSvc, userRepo, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc, logr)
		protected.POST("/reports/generate", reportHandler.GenerateReport)
		protected.GET("/reports/status/:id", reportHandler.ReportStatus)
		api.GET("/export/:token", middleware.Audit(userRepo, models.AuditActionReportDownload, "report"), reportHandler.DownloadReport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
