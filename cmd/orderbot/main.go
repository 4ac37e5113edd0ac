// Package main запускает бота приёма заказов.
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

	"github.com/mmeshcher/orderbot/internal/bot"
	"github.com/mmeshcher/orderbot/internal/config"
	"github.com/mmeshcher/orderbot/internal/repository"
	"github.com/mmeshcher/orderbot/internal/router"
	"github.com/mmeshcher/orderbot/internal/service"
	"github.com/mmeshcher/orderbot/internal/telegram"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	api := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken)

	rt := router.New(repo)
	svc := service.NewService(repo, bot.NewMessenger(api), rt, logger)
	b := bot.New(api, svc, rt, logger, cfg.PollTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.WebhookURL != "" {
		server := &http.Server{
			Addr:    cfg.RunAddress,
			Handler: b.WebhookRouter(cfg.WebhookSecret),
		}

		// Регистрация вебхука у Bot API
		g.Go(func() error {
			if err := api.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			sugar.Infow("webhook registered", "url", cfg.WebhookURL)
			return nil
		})

		// Запуск HTTP-сервера вебхука
		g.Go(func() error {
			sugar.Infow("starting webhook server", "addr", cfg.RunAddress)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})

		// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
		g.Go(func() error {
			<-ctx.Done()
			sugar.Info("shutting down webhook server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown error: %w", err)
			}
			sugar.Info("server stopped gracefully")
			return nil
		})
	} else {
		// Режим длинного опроса: вебхук, если он был, нужно снять.
		g.Go(func() error {
			if err := api.DeleteWebhook(ctx); err != nil {
				sugar.Warnw("delete webhook failed", "error", err.Error())
			}
			sugar.Info("starting long polling")
			return b.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
