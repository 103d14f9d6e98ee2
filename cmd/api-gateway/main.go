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
	"go.uber.org/zap"

	_ "github.com/noah-isme/studycenter-api/api/swagger"
	"github.com/noah-isme/studycenter-api/internal/handler"
	internalmiddleware "github.com/noah-isme/studycenter-api/internal/middleware"
	"github.com/noah-isme/studycenter-api/internal/repository"
	"github.com/noah-isme/studycenter-api/internal/service"
	"github.com/noah-isme/studycenter-api/pkg/cache"
	"github.com/noah-isme/studycenter-api/pkg/config"
	"github.com/noah-isme/studycenter-api/pkg/database"
	"github.com/noah-isme/studycenter-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studycenter-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studycenter-api/pkg/middleware/requestid"
	"github.com/noah-isme/studycenter-api/pkg/telemetry"
)

// @title Study Center API
// @version 1.0.0
// @description Course offering scheduling with conflict checks and grade aggregation
// @BasePath /api/v1
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Calendar.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, session calendar cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, "studycenter", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Calendar.CacheTTL, logr, cacheRepo != nil)

	offeringRepo := repository.NewOfferingRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	itemRepo := repository.NewGradedItemRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	locks := repository.NewLockRepository()

	engine := service.NewGradeEngine(cfg.Grading.PassMark)
	recomputer := service.NewRecomputer(db, locks, offeringRepo, itemRepo, achievementRepo, enrollmentRepo, engine, metrics, logr)
	checker := service.NewConflictChecker(offeringRepo, roomRepo, instructorRepo, subjectRepo, enrollmentRepo, metrics, logr)
	calendarSvc := service.NewCalendarService(offeringRepo, cacheSvc, logr)
	offeringSvc := service.NewOfferingService(offeringRepo, checker, enrollmentRepo, recomputer, calendarSvc, locks, db, validate, logr)
	itemSvc := service.NewGradedItemService(itemRepo, offeringRepo, recomputer, validate, logr)
	achievementSvc := service.NewAchievementService(itemRepo, achievementRepo, enrollmentRepo, recomputer, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, offeringRepo, enrollmentRepo, locks, db, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, offeringRepo, itemRepo, achievementRepo, recomputer, engine, validate, logr)
	maintenanceSvc := service.NewMaintenanceService(offeringRepo, recomputer, service.MaintenanceConfig{
		Workers:    cfg.Maintenance.Workers,
		MaxRetries: cfg.Maintenance.MaxRetries,
		RetryDelay: cfg.Maintenance.RetryDelay,
	}, metrics, validate, logr)
	maintenanceSvc.Start(ctx)
	defer maintenanceSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Metrics:     handler.NewMetricsHandler(metrics, db),
		Offerings:   handler.NewOfferingHandler(offeringSvc, calendarSvc, recomputer),
		Grading:     handler.NewGradingHandler(itemSvc, achievementSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Maintenance: handler.NewMaintenanceHandler(maintenanceSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
