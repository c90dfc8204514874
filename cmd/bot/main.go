// Package main runs the CIVIQ survey Telegram bot. With DATABASE_URL set it
// persists results to PostgreSQL; otherwise it writes one JSON file per
// completed questionnaire.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civiq-care/backend/config"
	"github.com/civiq-care/backend/internal/catalog"
	"github.com/civiq-care/backend/internal/results"
	"github.com/civiq-care/backend/internal/survey"
	"github.com/civiq-care/backend/internal/telegram"
	"github.com/civiq-care/backend/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Telegram.Token == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}

	cat, err := catalog.Load(cfg.Survey.CatalogPath)
	if err != nil {
		logger.Fatal("load question catalog", zap.Error(err))
	}
	logger.Info("question catalog loaded", zap.Int("questions", cat.Count()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink survey.ResultSink
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		sink = results.NewRepository(pool)
	} else {
		fileSink, err := results.NewFileSink(cfg.Survey.ResultsDir)
		if err != nil {
			logger.Fatal("results dir", zap.Error(err))
		}
		sink = fileSink
		logger.Info("persisting results to files", zap.String("dir", cfg.Survey.ResultsDir))
	}

	store := survey.NewMemoryStore()
	engine := survey.NewEngine(cat, store, sink, logger,
		survey.WithPersistTimeout(time.Duration(cfg.Survey.PersistTimeoutSec)*time.Second))

	bot, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.PollTimeout, engine, cat, logger)
	if err != nil {
		logger.Fatal("telegram bot", zap.Error(err))
	}

	logger.Info("bot started")
	if err := bot.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("bot stopped", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
