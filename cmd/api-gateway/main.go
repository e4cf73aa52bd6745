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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-attendance-api/api/swagger"
	"github.com/noah-isme/sma-attendance-api/internal/handler"
	"github.com/noah-isme/sma-attendance-api/internal/insight"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/cache"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-attendance-api/pkg/notify"
	"github.com/noah-isme/sma-attendance-api/pkg/storage"
)

// @title SMA Attendance API
// @version 1.0.0
// @description School attendance tracking with attendance insights and analytics.
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	proofRepo := repository.NewProofRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Insights.CacheTTL, logr, cacheRepo.Enabled())

	localStore, err := storage.NewLocalStorage(cfg.Proofs.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare proof storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Proofs.SignedURLSecret, cfg.Proofs.SignedURLTTL)

	thresholds := insight.Thresholds{
		Excellent:       cfg.Insights.ExcellentRate,
		Good:            cfg.Insights.GoodRate,
		ChronicAbsences: cfg.Insights.ChronicAbsences,
	}
	engine := insight.NewEngine(insight.Options{
		Thresholds:  thresholds,
		TrendWindow: cfg.Insights.TrendWindow,
		RankLimit:   cfg.Insights.RankLimit,
	})

	authSvc := service.NewAuthService(userRepo, sectionRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sma-attendance-api",
	})
	sectionSvc := service.NewSectionService(sectionRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, sectionRepo, userRepo, validate, logr, service.RosterOptions{
		MaxRows:      cfg.Roster.MaxRows,
		MaxFileBytes: cfg.Roster.MaxFileBytes,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, sectionRepo, proofRepo, cacheSvc, userRepo, validate, logr, service.AttendanceOptions{
		Location: cfg.Location,
	})
	proofSvc := service.NewProofService(proofRepo, sectionRepo, service.FileStore{LocalStorage: localStore}, signer, userRepo, logr, service.ProofOptions{
		MaxFileSizeBytes: cfg.Proofs.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Proofs.AllowedMIMEs,
	})

	loader := service.NewWindowLoader(attendanceRepo, studentRepo, sectionRepo, metrics, logr)
	insightSvc := service.NewInsightService(loader, transcriptRepo, metrics, validate, logr, service.InsightOptions{
		Thresholds:      thresholds,
		TrendWindow:     cfg.Insights.TrendWindow,
		RankLimit:       cfg.Insights.RankLimit,
		DefaultLookback: cfg.Insights.DefaultLookback,
		MaxRangeDays:    cfg.Reports.MaxRangeDays,
		HistoryLimit:    cfg.Insights.HistoryLimit,
		Location:        cfg.Location,
	})
	analyticsSvc := service.NewAnalyticsService(loader, engine, cacheSvc, metrics, logr, service.AnalyticsOptions{
		DefaultLookback: cfg.Insights.DefaultLookback,
		MaxRangeDays:    cfg.Reports.MaxRangeDays,
		CacheTTL:        cfg.Insights.CacheTTL,
		Location:        cfg.Location,
	})
	reportSvc := service.NewReportService(loader, engine, logr, service.ReportOptions{
		DefaultLookback: cfg.Insights.DefaultLookback,
		MaxRangeDays:    cfg.Reports.MaxRangeDays,
		Location:        cfg.Location,
	})

	var notifier notify.Notifier = notify.NewLogNotifier(logr)
	if cfg.Notifications.Enabled && cfg.Notifications.SendGridAPIKey != "" {
		notifier = notify.NewSendGridNotifier(cfg.Notifications.SendGridAPIKey, cfg.Notifications.SenderName, cfg.Notifications.SenderEmail)
	}
	worker := service.NewNotificationWorker(notifier, metrics, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	notificationSvc := service.NewNotificationService(queue, metrics, logr)
	analyticsSvc.WithNotificationQueue(queue)

	var digest *service.DigestScheduler
	if cfg.Digest.Enabled {
		digest = service.NewDigestScheduler(sectionRepo, insightSvc, notificationSvc, logr, service.DigestConfig{
			Schedule:     cfg.Digest.Schedule,
			LookbackDays: cfg.Digest.LookbackDays,
			Location:     cfg.Location,
		})
		if err := digest.Start(); err != nil {
			logr.Fatal("failed to schedule attendance digest", zap.Error(err))
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if cacheRepo.Enabled() {
		readiness["redis"] = cacheRepo.Ping
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Sections:   handler.NewSectionHandler(sectionSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc, proofSvc, cfg.APIPrefix),
		Insights:   handler.NewInsightHandler(insightSvc),
		Analytics:  handler.NewAnalyticsHandler(analyticsSvc, reportSvc),
		Metrics:    handler.NewMetricsHandler(metrics, readiness),
	}, handler.RouteDeps{
		Tokens:  authSvc,
		Audit:   userRepo,
		Metrics: metrics,
		Logger:  logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if digest != nil {
		digest.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
