package main

import (
	"os"
	"os/signal"
	"syscall"

	"club_billing_portal/internal/app"
	"club_billing_portal/internal/domain/settlement"
	domainTelegram "club_billing_portal/internal/domain/telegram"
	"club_billing_portal/internal/infra/config"
	idb "club_billing_portal/internal/infra/database"
	"club_billing_portal/internal/infra/email"
	"club_billing_portal/internal/infra/events"
	"club_billing_portal/internal/infra/gateway"
	"club_billing_portal/internal/infra/httpapi"
	"club_billing_portal/internal/infra/logger"
	"club_billing_portal/internal/infra/scheduler"
	"club_billing_portal/internal/infra/storage"
	"club_billing_portal/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	log := logger.Log
	log.WithField("environment", cfg.Environment).Info("Club billing portal starting...")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.Migrate(db); err != nil {
		log.WithError(err).Fatal("Could not run database migrations")
	}
	log.Info("Database ready")

	memberRepo := idb.NewPostgresMemberRepository(db)
	periodRepo := idb.NewPostgresPeriodRepository(db)
	obligationRepo := idb.NewPostgresObligationRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	bus := events.NewBus(log)

	var emailSender app.EmailSender
	if cfg.SMTPAddr != "" {
		emailSender = email.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
		log.WithField("addr", cfg.SMTPAddr).Info("Email channel enabled")
	}

	var telegramClient domainTelegram.Client
	if cfg.TelegramToken != "" {
		bot, err := telebot.NewBot(telebot.Settings{Token: cfg.TelegramToken})
		if err != nil {
			log.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegramClient = telegram.NewTelebotAdapter(bot)
		log.Info("Telegram channel enabled")
	}

	notifier := app.NewNotificationService(notificationRepo, memberRepo, bus, emailSender, telegramClient, log)
	generator := app.NewGenerator(periodRepo, memberRepo, obligationRepo, log)

	clock := app.SystemClock{}
	periodService := app.NewPeriodService(periodRepo, generator, clock, log)

	verifier := settlement.NewVerifier(cfg.GatewayKeySecret, cfg.GatewayWebhookSecret)
	gatewayClient := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret)
	ledger := app.NewLedgerService(obligationRepo, verifier, gatewayClient, notifier, log)

	sweeps := app.NewSweepService(
		obligationRepo,
		memberRepo,
		periodRepo,
		notificationRepo,
		notifier,
		generator,
		storage.NewLocalStore(cfg.UploadDir),
		app.SweepConfig{
			ReminderTiers:             cfg.ReminderTiers,
			NotificationRetentionDays: cfg.NotificationRetentionDays,
			ArtifactRetentionDays:     cfg.ArtifactRetentionDays,
			OverdueRedispatchDays:     cfg.OverdueRedispatchDays,
		},
		clock,
		log,
	)

	sweepScheduler := scheduler.NewSweepScheduler(sweeps, scheduler.CronSpecs{
		Reminder:   cfg.CronSpecReminderSweep,
		Overdue:    cfg.CronSpecOverdueSweep,
		Wishes:     cfg.CronSpecWishes,
		Generation: cfg.CronSpecGenerateSweep,
		Retention:  cfg.CronSpecRetentionSweep,
	}, log)
	if err := sweepScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Could not start sweep scheduler")
	}

	server := httpapi.NewServer(periodService, ledger, notifier, []byte(cfg.JWTSecret), log)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.Listen(cfg.HTTPAddr); err != nil {
			log.WithError(err).Fatal("HTTP server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	sweepScheduler.Stop()
	if err := server.Shutdown(); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("Application shut down gracefully")
}
