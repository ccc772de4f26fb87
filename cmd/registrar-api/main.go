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

	_ "github.com/noah-isme/course-registration-api/api/swagger"
	"github.com/noah-isme/course-registration-api/internal/handler"
	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	"github.com/noah-isme/course-registration-api/internal/service"
	"github.com/noah-isme/course-registration-api/migrations"
	"github.com/noah-isme/course-registration-api/pkg/cache"
	"github.com/noah-isme/course-registration-api/pkg/config"
	"github.com/noah-isme/course-registration-api/pkg/database"
	"github.com/noah-isme/course-registration-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/requestid"
)

// @title Course Registration API
// @version 1.0.0
// @description School course registration backend with admin-adjudicated add/drop requests
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		logr.Sugar().Fatalw("failed to apply migrations", "error", err)
	}
	if version, err := database.MigrationVersion(ctx, db); err != nil {
		logr.Sugar().Warnw("failed to read schema version", "error", err)
	} else {
		logr.Sugar().Infow("schema ready", "version", version)
	}

	var catalogCache *repository.CatalogCache
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		catalogCache = repository.NewCatalogCache(redisClient, logr)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	registrarRepo := repository.NewRegistrarRepository(db, classRepo, enrollmentRepo, requestRepo)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)

	registrarOpts := []service.RegistrarServiceOption{
		service.WithDecisionRecorder(metricsSvc),
	}
	if catalogCache != nil {
		registrarOpts = append(registrarOpts, service.WithCatalogCache(catalogCache, cfg.Catalog.CacheTTL))
	}
	registrarSvc := service.NewRegistrarService(
		registrarRepo, requestRepo, enrollmentRepo, classRepo, userRepo,
		cfg.Registrar.MaxPeriods, validate, logr, registrarOpts...,
	)

	var classCache interface{ Invalidate(context.Context) error }
	if catalogCache != nil {
		classCache = catalogCache
	}
	classSvc := service.NewClassService(classRepo, userRepo, classCache, cfg.Registrar.MaxPeriods, validate, logr)
	rosterSvc := service.NewRosterService(enrollmentRepo, classRepo, logr)
	userSvc := service.NewUserService(userRepo, cfg.Bootstrap, validate, logr)

	if err := userSvc.EnsureBootstrapAdmin(ctx); err != nil {
		logr.Sugar().Fatalw("failed to seed bootstrap admin", "error", err)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc, rosterSvc)
	registrationHandler := handler.NewRegistrationHandler(registrarSvc)
	userHandler := handler.NewUserHandler(userSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/classes", classHandler.List)
	authed.GET("/classes/available", middleware.RequireRoles(models.RoleStudent), registrationHandler.AvailableClasses)
	authed.GET("/classes/:id", classHandler.Get)
	authed.GET("/classes/:id/roster", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), classHandler.ExportRoster)
	authed.POST("/classes", middleware.RequireRoles(models.RoleAdmin), classHandler.Create)
	authed.DELETE("/classes/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)

	authed.POST("/users", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)

	authed.GET("/students/me/periods", middleware.RequireRoles(models.RoleStudent), registrationHandler.MissingPeriods)

	authed.POST("/registrations", middleware.RequireRoles(models.RoleStudent), registrationHandler.Submit)
	authed.GET("/registrations", middleware.RequireRoles(models.RoleAdmin), registrationHandler.ListPending)
	authed.POST("/registrations/:id/accept", middleware.RequireRoles(models.RoleAdmin), registrationHandler.Accept)
	authed.POST("/registrations/:id/decline", middleware.RequireRoles(models.RoleAdmin), registrationHandler.Decline)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
