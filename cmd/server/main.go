package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/config"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/handlers"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/mailer"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/messaging"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/monitoring"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/routes"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/scheduler"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/service"
	"github.com/Doogleyarae/Doogleonline-sub000/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger.Init(cfg.Logging)
	logrus.Info("starting exchange server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	db, err := repository.NewDatabase(ctx, cfg.Database)
	cancel()
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to MongoDB")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Fatal("failed to connect to Redis")
	}

	// Repositories
	orderRepo := repository.NewOrderRepository(db, cfg.Workflow.OrderNumberPrefix)
	rateRepo := repository.NewRateRepository(db)
	limitRepo := repository.NewLimitRepository(db)
	walletRepo := repository.NewWalletAddressRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	contactRepo := repository.NewContactRepository(db)
	sessions := repository.NewSessionStore(rdb, cfg.Redis.SessionTTL)
	cancellations := repository.NewCancellationStore(rdb)
	currencyLocks := repository.NewCurrencyLockManager(repository.NewLockRepository(rdb))

	// Shared infrastructure
	hub := notifier.NewHub()
	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)

	var publisher service.EventPublisher
	var amqpPublisher *messaging.Publisher
	if cfg.RabbitMQ.Enabled {
		amqpPublisher, err = messaging.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, order events disabled")
		} else {
			publisher = amqpPublisher
		}
	}

	// Services
	tolerance, err := decimal.NewFromString(cfg.Workflow.AmountTolerance)
	if err != nil {
		logrus.WithError(err).Fatal("invalid amount tolerance")
	}

	rateService := service.NewRateService(rateRepo, limitRepo, hub)
	balanceService := service.NewBalanceService(balanceRepo, settingsRepo, currencyLocks, cfg.Redis.LockTTL, hub)
	timerManager := service.NewTimerManager(cfg.Workflow.ProcessingWindow)
	guard := service.NewCancellationGuard(cancellations, cfg.Workflow.CancelLimit, cfg.Workflow.CancelWindow)
	orderService := service.NewOrderService(
		orderRepo, walletRepo, rateService, balanceService,
		timerManager, guard, smtpMailer, publisher, hub,
		tolerance, cfg.Workflow.ProcessingWindow,
	)
	contactService := service.NewContactService(contactRepo, smtpMailer, hub)

	// Timer callback is installed after the order service exists.
	timerManager.SetOnFire(func(orderID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := orderService.AutoComplete(ctx, orderID); err != nil {
			logrus.WithError(err).WithField("order_id", orderID).
				Error("timer auto-complete failed")
		}
		monitoring.SetActiveTimers(timerManager.ActiveCount())
	})

	// Restart recovery: complete overdue paid orders on an interval.
	sweeper := scheduler.NewSweeper(orderRepo, orderService, cfg.Workflow.SweepInterval)
	if err := sweeper.Start(); err != nil {
		logrus.WithError(err).Fatal("failed to start sweeper")
	}

	router := routes.SetupRouter(&routes.Dependencies{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Sessions: sessions,
		OrderHandler: handlers.NewOrderHandler(orderService, timerManager),
		RateHandler:  handlers.NewRateHandler(rateService),
		ContactHandler: handlers.NewContactHandler(contactService),
		AdminHandler: handlers.NewAdminHandler(
			cfg.Auth, sessions, walletRepo,
			orderService, rateService, balanceService, contactService,
		),
		WSHandler: handlers.NewWSHandler(hub),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("http shutdown failed")
	}

	sweeper.Stop()
	timerManager.Stop()
	hub.Close()
	if amqpPublisher != nil {
		amqpPublisher.Close()
	}
	if err := rdb.Close(); err != nil {
		logrus.WithError(err).Error("redis close failed")
	}
	if err := db.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Error("mongodb close failed")
	}

	logrus.Info("shutdown complete")
}
