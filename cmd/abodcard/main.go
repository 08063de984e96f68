// Package main запускает магазин Abod Card: HTTP-сервер и два Telegram-бота.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abodcard/storefront/internal/bot"
	"github.com/abodcard/storefront/internal/config"
	"github.com/abodcard/storefront/internal/gateway"
	"github.com/abodcard/storefront/internal/handler"
	"github.com/abodcard/storefront/internal/middleware"
	"github.com/abodcard/storefront/internal/notify"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/service"
	"github.com/abodcard/storefront/internal/session"
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

	customerAPI, err := tgbotapi.NewBotAPI(cfg.UserBotToken)
	if err != nil {
		sugar.Fatalw("customer bot initialization error", "error", err.Error())
	}
	adminAPI, err := tgbotapi.NewBotAPI(cfg.AdminBotToken)
	if err != nil {
		sugar.Fatalw("admin bot initialization error", "error", err.Error())
	}

	notifier := notify.NewTelegramNotifier(customerAPI, adminAPI, cfg.AdminChatIDs, logger)

	var gw service.Gateway
	if cfg.GatewayAddress != "" {
		gw = gateway.NewClient(cfg.GatewayAddress)
	}

	svc := service.NewService(repo, notifier, gw, logger)

	sessions := session.NewManager(repo, logger, cfg.SessionTTL)

	customerBot := bot.NewCustomerBot(customerAPI, svc, sessions, logger)
	adminBot := bot.NewAdminBot(adminAPI, svc, sessions, cfg.AdminChatIDs, logger)

	adminAuth := middleware.NewAdminAuth(cfg.AdminAPIToken)
	h := handler.NewHandler(svc, logger, adminAuth)

	r := h.SetupRouter(cfg.CORSOrigins)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Чистка брошенных сессий по расписанию.
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() { sessions.ReapStale(ctx) }); err != nil {
		sugar.Fatalw("cron initialization error", "error", err.Error())
	}
	c.Start()
	defer c.Stop()

	g, ctx := errgroup.WithContext(ctx)

	// Покупательский бот
	g.Go(func() error {
		return customerBot.Run(ctx)
	})

	// Админский бот
	g.Go(func() error {
		return adminBot.Run(ctx)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting abodcard server", "addr", cfg.RunAddress)
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
