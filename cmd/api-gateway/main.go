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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/scms-api/api/swagger"
	"github.com/noah-isme/scms-api/internal/handler"
	"github.com/noah-isme/scms-api/internal/middleware"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/internal/repository"
	"github.com/noah-isme/scms-api/internal/service"
	"github.com/noah-isme/scms-api/pkg/cache"
	"github.com/noah-isme/scms-api/pkg/config"
	"github.com/noah-isme/scms-api/pkg/database"
	"github.com/noah-isme/scms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/scms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scms-api/pkg/middleware/requestid"
)

// @title SCMS API
// @version 1.0.0
// @description School complaint management service
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Services
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "scms-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, cfg.Notifications, logr,
		service.WithQueueDepthRecorder(metricsSvc))

	complaintSvc := service.NewComplaintService(complaintRepo, historyRepo, logr)
	statusSvc := service.NewStatusService(complaintRepo, logr,
		service.WithStatusNotifier(notificationSvc),
		service.WithTransitionRecorder(metricsSvc))
	assignmentSvc := service.NewAssignmentService(complaintRepo, userRepo, categoryRepo, departmentRepo, cfg.Assignment, logr,
		service.WithAssignmentNotifier(notificationSvc),
		service.WithAssignmentRecorder(metricsSvc))
	commentSvc := service.NewCommentService(commentRepo, complaintRepo, logr,
		service.WithCommentNotifier(notificationSvc))

	attachmentSvc, err := service.NewAttachmentService(attachmentRepo, complaintRepo, cfg.Attachments, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		if cacheRepo != nil {
			dashboardSvc = service.NewDashboardService(statsRepo, cacheRepo, cfg.Dashboard, logr,
				service.WithCacheRecorder(metricsSvc))
		} else {
			dashboardSvc = service.NewDashboardService(statsRepo, nil, cfg.Dashboard, logr)
		}
	}

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(complaintRepo, cfg.Exports, logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	complaintHandler := handler.NewComplaintHandler(complaintSvc)
	statusHandler := handler.NewStatusHandler(statusSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var dashboardHandler *handler.DashboardHandler
	if dashboardSvc != nil {
		dashboardHandler = handler.NewDashboardHandler(dashboardSvc)
	}
	var exportHandler *handler.ExportHandler
	if exportSvc != nil {
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("", middleware.JWT(authSvc))
		protected.POST("/logout", authHandler.Logout)
		protected.POST("/change-password", authHandler.ChangePassword)
		protected.GET("/me", authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), userHandler.List)
		users.GET("/:id", middleware.RBAC("SUPER_ADMIN", "ADMIN", "SELF"), userHandler.Get)
		users.POST("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), userHandler.Create)
		users.PUT("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), userHandler.Delete)
	}

	complaints := api.Group("/complaints", middleware.JWT(authSvc))
	{
		complaints.POST("", complaintHandler.Create)
		complaints.GET("", complaintHandler.List)
		complaints.GET("/:id", complaintHandler.Get)
		complaints.PATCH("/:id", complaintHandler.Update)
		complaints.DELETE("/:id", complaintHandler.Delete)
		complaints.GET("/:id/timeline", complaintHandler.Timeline)

		complaints.PATCH("/:id/status", statusHandler.UpdateStatus)
		complaints.GET("/:id/transitions", statusHandler.AllowedTransitions)

		complaints.POST("/:id/assign", assignmentHandler.Assign)
		complaints.POST("/:id/reassign", assignmentHandler.Reassign)
		complaints.DELETE("/:id/assign", assignmentHandler.Unassign)
		complaints.POST("/:id/auto-assign",
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
			assignmentHandler.AutoAssign)

		complaints.POST("/:id/comments", commentHandler.Add)
		complaints.GET("/:id/comments", commentHandler.List)

		complaints.POST("/:id/attachments", attachmentHandler.Upload)
		complaints.GET("/:id/attachments", attachmentHandler.List)
	}

	assignments := api.Group("/assignments", middleware.JWT(authSvc))
	{
		assignments.GET("/users", assignmentHandler.AssignableUsers)
	}

	attachments := api.Group("/attachments")
	{
		// Download resolves a signed token, so no JWT is required.
		attachments.GET("/download", attachmentHandler.Download)

		protected := attachments.Group("", middleware.JWT(authSvc))
		protected.GET("/:id/download-url", attachmentHandler.DownloadURL)
		protected.DELETE("/:id", attachmentHandler.Delete)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	if dashboardHandler != nil {
		api.GET("/dashboard", middleware.JWT(authSvc),
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleVicePrincipal, models.RolePrincipal),
			dashboardHandler.Summary)
	}

	if exportHandler != nil {
		exports := api.Group("/exports", middleware.JWT(authSvc),
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleVicePrincipal, models.RolePrincipal),
			middleware.Audit(userRepo, models.AuditActionExportDownload, "complaints"))
		exports.GET("/complaints.csv", exportHandler.CSV)
		exports.GET("/complaints.pdf", exportHandler.PDF)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
