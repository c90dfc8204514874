// Package main runs the CIVIQ survey HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civiq-care/backend/config"
	"github.com/civiq-care/backend/internal/auth"
	"github.com/civiq-care/backend/internal/catalog"
	"github.com/civiq-care/backend/internal/middleware"
	"github.com/civiq-care/backend/internal/results"
	"github.com/civiq-care/backend/internal/survey"
	"github.com/civiq-care/backend/internal/worker"
	"github.com/civiq-care/backend/pkg/database"
	"github.com/civiq-care/backend/pkg/queue"
	"github.com/civiq-care/backend/pkg/redis"
	"github.com/civiq-care/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	cat, err := catalog.Load(cfg.Survey.CatalogPath)
	if err != nil {
		logger.Fatal("load question catalog", zap.Error(err))
	}
	logger.Info("question catalog loaded", zap.Int("questions", cat.Count()))

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Results + survey core
	resultRepo := results.NewRepository(pool)
	store := survey.NewMemoryStore()

	engineOpts := []survey.Option{
		survey.WithPersistTimeout(time.Duration(cfg.Survey.PersistTimeoutSec) * time.Second),
	}

	// Redis is optional: without it, failed result writes are log-only.
	var resultWorker *worker.ResultProcessor
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		jobQueue := queue.NewQueue(rdb.Client, logger)
		engineOpts = append(engineOpts, survey.WithRetryQueue(jobQueue))
		resultWorker = worker.NewResultProcessor(resultRepo, jobQueue, logger)
	}

	engine := survey.NewEngine(cat, store, resultRepo, logger, engineOpts...)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	surveyHandler := survey.NewHandler(engine, logger)
	resultsHandler := results.NewHandler(resultRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Survey
		api.POST("/survey/start", surveyHandler.Start)
		api.POST("/survey/answers", surveyHandler.Answer)
		api.POST("/survey/cancel", surveyHandler.Cancel)
		api.POST("/survey/reset", surveyHandler.Reset)
		api.GET("/survey/results", surveyHandler.Results)

		// Stored results (admin)
		api.GET("/results", middleware.RequireRole("admin"), resultsHandler.List)
		api.GET("/results/:userId", middleware.RequireRole("admin"), resultsHandler.GetByUser)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (result persist retries)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if resultWorker != nil {
		go resultWorker.Run(workerCtx)
		logger.Info("result persist worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
