// Package main запускает HTTP-сервер сервиса переводов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/venmo-service/internal/config"
	"github.com/mmeshcher/venmo-service/internal/credential"
	"github.com/mmeshcher/venmo-service/internal/handler"
	"github.com/mmeshcher/venmo-service/internal/ledger"
	"github.com/mmeshcher/venmo-service/internal/middleware"
	"github.com/mmeshcher/venmo-service/internal/notify"
	"github.com/mmeshcher/venmo-service/internal/payment"
	"github.com/mmeshcher/venmo-service/internal/repository"
	"github.com/mmeshcher/venmo-service/internal/service"
)

const notificationBuffer = 1024

type store interface {
	service.Repository
	ledger.TxRunner
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo store
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var queue notify.Queue
	if cfg.RedisAddress != "" {
		redisQueue, err := notify.NewRedisQueue(cfg.RedisAddress)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisQueue.Close()
		queue = redisQueue
	} else {
		queue = notify.NewMemoryQueue(notificationBuffer)
	}

	var mailer notify.Mailer
	if cfg.MailAPIAddress != "" {
		mailer = notify.NewHTTPMailer(cfg.MailAPIAddress)
	} else {
		mailer = notify.NewLogMailer(logger)
	}

	dispatcher := notify.NewDispatcher(queue, mailer, logger)

	hasher := credential.NewHasher(cfg.PasswordSalt, cfg.HashIterations)
	processor := payment.NewProcessor(repo, ledger.New(repo, hasher), dispatcher, logger)

	svc := service.NewService(repo, processor, hasher)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	h := handler.NewHandler(svc, logger, authMiddleware, rateLimiter)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая доставка уведомлений
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting venmo server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
