package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/dentalink/dentalink-api/api/swagger"
	"github.com/dentalink/dentalink-api/internal/handler"
	"github.com/dentalink/dentalink-api/internal/middleware"
	"github.com/dentalink/dentalink-api/internal/models"
	"github.com/dentalink/dentalink-api/internal/repository"
	"github.com/dentalink/dentalink-api/internal/service"
	"github.com/dentalink/dentalink-api/pkg/cache"
	"github.com/dentalink/dentalink-api/pkg/config"
	"github.com/dentalink/dentalink-api/pkg/database"
	"github.com/dentalink/dentalink-api/pkg/jobs"
	"github.com/dentalink/dentalink-api/pkg/logger"
	"github.com/dentalink/dentalink-api/pkg/mail"
	corsmiddleware "github.com/dentalink/dentalink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dentalink/dentalink-api/pkg/middleware/requestid"
	"github.com/dentalink/dentalink-api/pkg/storage"
)

// @title DentaLink API
// @version 1.0.0
// @description Marketplace API connecting dental clinics with fabrication labs
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	labRepo := repository.NewLabRepository(db)
	fileRepo := repository.NewFileRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Outbound mail rides the in-memory queue so the reset endpoint never
	// blocks on SMTP.
	var mailer mail.Mailer
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	} else {
		mailer = mail.NewLogMailer(logr)
	}
	mailQueue := jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case jobs.JobSendResetMail:
			return mailer.SendPasswordReset(job.Payload["email"], job.Payload["otp"])
		}
		logr.Warn("unknown job type", zap.String("type", job.Type))
		return nil
	}, jobs.QueueConfig{Workers: cfg.Mail.QueueWorker, Logger: logr})
	mailQueue.Start(context.Background())
	defer mailQueue.Stop()

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, mailQueue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.Reset.TokenTTL,
		Issuer:             "dentalink-api",
		Audience:           []string{"dentalink"},
	})
	caseSvc := service.NewCaseService(caseRepo, clinicRepo, labRepo, fileRepo, messageRepo, userRepo, cacheRepo, validate, logr)
	profileSvc := service.NewProfileService(userRepo, clinicRepo, labRepo, validate, logr)
	directorySvc := service.NewDirectoryService(labRepo, clinicRepo, cacheRepo, cfg.Directory.CacheTTL, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, caseSvc, clinicRepo, labRepo, validate, logr)
	fileSvc := service.NewFileService(fileRepo, caseSvc, blobs, service.FileConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		AllowedExts:      cfg.Uploads.AllowedExts,
	}, logr)
	reviewSvc := service.NewReviewService(reviewRepo, caseRepo, labRepo, clinicRepo, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(caseRepo, caseSvc, directorySvc, reviewRepo, clinicRepo, labRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(caseRepo, clinicRepo, labRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	caseHandler := handler.NewCaseHandler(caseSvc, metricsSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	fileHandler := handler.NewFileHandler(fileSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, exportSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
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
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/request-reset", authHandler.RequestReset)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/profile", profileHandler.Get)
		protected.PATCH("/profile", profileHandler.UpdateName)

		cases := protected.Group("/cases")
		{
			cases.POST("", middleware.RequireRoles(models.RoleClinic), caseHandler.Create)
			cases.GET("/export", dashboardHandler.Export)
			cases.GET("/:id", caseHandler.Detail)
			cases.POST("/:id/decision", middleware.RequireRoles(models.RoleLab), caseHandler.Decide)
			cases.PATCH("/:id/status", middleware.RequireRoles(models.RoleLab), caseHandler.UpdateStatus)
			cases.POST("/:id/cancel", middleware.RequireRoles(models.RoleClinic), caseHandler.Cancel)
			cases.GET("/:id/messages", messageHandler.Thread)
			cases.POST("/:id/messages", messageHandler.Post)
			cases.GET("/:id/files", fileHandler.List)
			cases.POST("/:id/files", fileHandler.Upload)
		}

		protected.GET("/files/:id", fileHandler.Download)

		clinic := protected.Group("/clinic", middleware.RequireRoles(models.RoleClinic))
		{
			clinic.GET("/cases", caseHandler.ClinicCases)
			clinic.GET("/dashboard", dashboardHandler.Clinic)
			clinic.PUT("/profile", profileHandler.UpdateClinic)
			clinic.GET("/favorites", directoryHandler.Favorites)
			clinic.POST("/favorites", directoryHandler.AddFavorite)
			clinic.DELETE("/favorites/:labId", directoryHandler.RemoveFavorite)
		}

		lab := protected.Group("/lab", middleware.RequireRoles(models.RoleLab))
		{
			lab.GET("/cases/incoming", caseHandler.Incoming)
			lab.GET("/cases/jobs", caseHandler.Jobs)
			lab.GET("/dashboard", dashboardHandler.Lab)
			lab.PUT("/profile", profileHandler.UpdateLab)
			lab.GET("/reviews", reviewHandler.Own)
		}

		labs := protected.Group("/labs", middleware.RequireRoles(models.RoleClinic))
		{
			labs.GET("", directoryHandler.Discover)
			labs.GET("/recommended", directoryHandler.Recommended)
			labs.GET("/:labId", directoryHandler.Detail)
			labs.GET("/:labId/reviews", reviewHandler.ForLab)
		}

		protected.POST("/reviews", middleware.RequireRoles(models.RoleClinic), reviewHandler.Create)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
}
