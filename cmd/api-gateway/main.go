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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-engine-api/api/swagger"
	"github.com/noah-isme/academic-engine-api/internal/handler"
	internalmiddleware "github.com/noah-isme/academic-engine-api/internal/middleware"
	"github.com/noah-isme/academic-engine-api/internal/models"
	"github.com/noah-isme/academic-engine-api/internal/repository"
	"github.com/noah-isme/academic-engine-api/internal/service"
	"github.com/noah-isme/academic-engine-api/pkg/cache"
	"github.com/noah-isme/academic-engine-api/pkg/config"
	"github.com/noah-isme/academic-engine-api/pkg/database"
	"github.com/noah-isme/academic-engine-api/pkg/jobs"
	"github.com/noah-isme/academic-engine-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-engine-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-engine-api/pkg/middleware/requestid"
)

// @title Academic Engine API
// @version 1.0.0
// @description Grade evaluation, promotion classification and matricula lifecycle.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	if cfg.Statistics.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, "academic-engine")
		}
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Statistics.CacheTTL, logr, true)
	}

	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	componentRepo := repository.NewGradeComponentRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})
	formulaSvc := service.NewFormulaService(classRepo, componentRepo, formulaRepo, validate, logr)
	gradeSvc := service.NewGradeService(classRepo, studentRepo, componentRepo, formulaRepo, gradeRepo, cacheSvc, metricsSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, studentRepo, gradeSvc, attendanceRepo, metricsSvc, service.EnrollmentConfig{
		MaxClassLevel: cfg.Classification.MaxLevel,
		Concurrency:   cfg.Classification.Concurrency,
	}, validate, logr)

	queue := jobs.NewQueue("classification", jobs.QueueConfig{
		Workers:    cfg.Classification.Workers,
		MaxRetries: cfg.Classification.Retries,
		Logger:     logr,
	})
	classificationJobs := service.NewClassificationJobs(queue, enrollmentSvc, logr)
	queue.Start(ctx)
	defer queue.Stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(enrollmentRepo, classRepo, logr, nil, nil)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc.Handler(), readinessChecks(db, cacheRepo), logr)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var exporter handler.PromotionExporter
	if exportSvc != nil {
		exporter = exportSvc
	}
	registerRoutes(r.Group(cfg.APIPrefix, internalmiddleware.JWT(tokenSvc)), routeHandlers{
		formulas:        handler.NewFormulaHandler(formulaSvc),
		grades:          handler.NewGradeHandler(gradeSvc),
		classifications: handler.NewClassificationHandler(enrollmentSvc),
		enrollments:     handler.NewEnrollmentHandler(enrollmentSvc, classificationJobs, exporter),
	})

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	formulas        *handler.FormulaHandler
	grades          *handler.GradeHandler
	classifications *handler.ClassificationHandler
	enrollments     *handler.EnrollmentHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)

	formulas := api.Group("/formulas", staff)
	formulas.POST("/validate", h.formulas.Validate)
	formulas.POST("/preview", h.formulas.Preview)
	formulas.GET("/weights", h.formulas.Weights)

	grades := api.Group("/grades", staff)
	grades.POST("/aggregate", h.grades.Aggregate)
	grades.GET("/finals", h.grades.Finals)
	grades.GET("/statistics", h.grades.Statistics)
	grades.DELETE("/statistics", h.grades.InvalidateStatistics)

	api.POST("/classifications/preview", staff, h.classifications.Preview)

	matriculas := api.Group("/matriculas", admin)
	matriculas.GET("", h.enrollments.List)
	matriculas.GET("/export", h.enrollments.Export)
	matriculas.POST("/generate", h.enrollments.Generate)
	matriculas.POST("/classify", h.enrollments.ClassifyClass)
	matriculas.GET("/classify/jobs/:jobId", h.enrollments.JobStatus)
	matriculas.POST("/batch-confirm", h.enrollments.BatchConfirm)
	matriculas.GET("/:id", h.enrollments.Get)
	matriculas.POST("/:id/classify", h.enrollments.Classify)
	matriculas.POST("/:id/confirm", h.enrollments.Confirm)
	matriculas.POST("/:id/exam", h.enrollments.RegisterExam)
	matriculas.POST("/:id/cancel", h.enrollments.Cancel)
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if cacheRepo != nil {
		checks["redis"] = cacheRepo.Ping
	}
	return checks
}
