package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/philong996/kindergarten-connect-sub000/api/swagger"
	"github.com/philong996/kindergarten-connect-sub000/internal/handler"
	internalmiddleware "github.com/philong996/kindergarten-connect-sub000/internal/middleware"
	"github.com/philong996/kindergarten-connect-sub000/internal/repository"
	"github.com/philong996/kindergarten-connect-sub000/internal/service"
	"github.com/philong996/kindergarten-connect-sub000/pkg/cache"
	"github.com/philong996/kindergarten-connect-sub000/pkg/config"
	"github.com/philong996/kindergarten-connect-sub000/pkg/database"
	"github.com/philong996/kindergarten-connect-sub000/pkg/jobs"
	"github.com/philong996/kindergarten-connect-sub000/pkg/logger"
	corsmiddleware "github.com/philong996/kindergarten-connect-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/philong996/kindergarten-connect-sub000/pkg/middleware/requestid"
	"github.com/philong996/kindergarten-connect-sub000/pkg/storage"
)

// @title Kindergarten Attendance API
// @version 1.0.0
// @description Daily attendance tracking and attendance statistics for kindergarten classes.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type stores struct {
	roster  service.RosterReader
	records service.AttendanceStore
	reports service.ReportJobStore
	db      *sqlx.DB
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open attendance store", zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}
	if st.db != nil {
		checks["database"] = st.db.PingContext
	}

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		var client *redis.Client
		client, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo := repository.NewCacheRepository(client)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
			checks["redis"] = cacheRepo.Ping
		}
	}

	validate := validator.New()
	store := service.NewInstrumentedStore(st.records, cfg.Store.Timeout, metrics)
	bulk := service.NewBulkCoordinator(store, cacheSvc, metrics, logr)
	attendanceSvc := service.NewAttendanceService(st.roster, store, bulk, cacheSvc, validate, logr)
	statisticsSvc := service.NewStatisticsService(st.roster, store, cacheSvc, cfg.Stats.CacheTTL, logr)

	routes := handler.Routes{
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Statistics: handler.NewStatisticsHandler(statisticsSvc),
		Verifier:   internalmiddleware.NewTokenVerifier(cfg.JWT.Secret),
		Logger:     logr,
	}

	if cfg.Reports.Enabled {
		local, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exporter := service.NewExportService(statisticsSvc, attendanceSvc, local, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewReportWorker(st.reports, exporter, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc := service.NewReportService(st.reports, queue, exporter, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		routes.Reports = handler.NewReportHandler(reportSvc, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver, "reports", cfg.Reports.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		roster := repository.NewMemoryRoster()
		logr.Warn("using in-memory attendance store; data is lost on restart")
		if cfg.Store.RosterFile == "" {
			logr.Warn("ROSTER_FILE is not set; the in-memory roster is empty")
		} else {
			n, err := repository.LoadRosterFile(cfg.Store.RosterFile, roster)
			if err != nil {
				return stores{}, err
			}
			logr.Info("roster seeded", zap.String("file", cfg.Store.RosterFile), zap.Int("students", n))
		}
		return stores{
			roster:  roster,
			records: repository.NewMemoryAttendanceStore(roster),
			reports: repository.NewMemoryReportJobStore(),
		}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return stores{}, err
	}
	if cfg.Store.Migrate {
		if err := repository.Migrate(ctx, db, logr); err != nil {
			db.Close()
			return stores{}, err
		}
	}
	return stores{
		roster:  repository.NewStudentRepository(db),
		records: repository.NewAttendanceRepository(db),
		reports: repository.NewReportRepository(db),
		db:      db,
	}, nil
}
