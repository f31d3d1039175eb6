package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"
	"petcare_reminders/internal/domain/reminder"
	"petcare_reminders/internal/infra/config"
	idb "petcare_reminders/internal/infra/database"
	ifs "petcare_reminders/internal/infra/firestore"
	"petcare_reminders/internal/infra/httpapi"
	"petcare_reminders/internal/infra/logger"
	"petcare_reminders/internal/infra/memstore"
	"petcare_reminders/internal/infra/push"
	"petcare_reminders/internal/infra/scheduler"
	"petcare_reminders/internal/infra/telegram"

	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const reconcileTimeout = 5 * time.Minute

type stores struct {
	reminders   reminder.Repository
	pets        pet.Repository
	records     record.Repository
	permissions notification.PermissionStore
	tokens      notification.DeviceTokens
	closers     []func() error
}

func (s *stores) close(log *logrus.Entry) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.WithError(err).Warn("Error while closing store")
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	mainLogger := logger.For("main")
	mainLogger.WithFields(logrus.Fields{
		"store":       cfg.StoreBackend,
		"dispatch":    cfg.DispatchChannel,
		"environment": cfg.Environment,
	}).Info("Pet care reminder service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var fbApp *firebase.App
	if cfg.StoreBackend == config.StoreFirestore || cfg.DispatchChannel == config.ChannelFCM {
		fbApp, err = push.NewFirebaseApp(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not initialize Firebase")
		}
		mainLogger.Info("Firebase initialized")
	}

	st, err := openStores(ctx, cfg, fbApp)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open store")
	}
	defer st.close(mainLogger)
	mainLogger.Info("Stores initialized")

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, logger.For("telegram"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
	}

	dispatcher, err := newDispatcher(ctx, cfg, bot, fbApp, st)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create notification dispatcher")
	}

	cronScheduler := scheduler.NewCronScheduler(st.permissions, dispatcher, logger.For("scheduler"), cfg.Location)

	authn := auth.ContextAuthenticator{}
	reminderService := app.NewReminderService(st.reminders, st.pets, cronScheduler, authn, cfg.AdminOwnerID, logger.For("reminders"), cfg.SchedulerTimeout)
	cascadeService := app.NewCascadeService(st.pets, st.records, st.reminders, reminderService, authn, logger.For("cascade"))
	liveView := app.NewLiveView(st.reminders, authn, logger.For("live_view"))

	// Triggers live in process memory; rebuild them from the stored reminders before serving.
	reconcile := func(ctx context.Context) error {
		report, err := reminderService.Reconcile(ctx)
		if err != nil {
			return err
		}
		logger.For("reconcile").WithFields(logrus.Fields{
			"checked":         report.Checked,
			"rescheduled":     report.Rescheduled,
			"handles_cleared": report.HandlesCleared,
			"orphans_removed": report.OrphansRemoved,
			"past_due":        report.PastDue,
			"failed":          len(report.Failed),
		}).Info("Reconcile finished")
		return nil
	}
	startupCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	if err := reconcile(startupCtx); err != nil {
		mainLogger.WithError(err).Error("Startup reconcile failed; the periodic job will retry")
	}
	cancel()
	if err := cronScheduler.AddMaintenanceJob(cfg.CronSpecReconcile, "reconcile", reconcileTimeout, reconcile); err != nil {
		mainLogger.WithError(err).Fatal("Could not register reconcile job")
	}
	cronScheduler.Start()

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		api := httpapi.NewServer(reminderService, cascadeService, liveView, st.reminders, logger.For("http"))
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLogger.WithError(err).Error("HTTP server stopped")
			}
		}()
	}

	if bot != nil {
		handlers := telegram.NewHandlers(reminderService, cascadeService, liveView, st.pets, st.permissions,
			cfg.AdminOwnerID, cfg.Location, logger.For("telegram"))
		handlers.Register(ctx, bot)
		mainLogger.Info("Telegram command handlers registered")
		go bot.Start()
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("HTTP server shutdown")
		}
		cancel()
	}
	cronScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

func openStores(ctx context.Context, cfg *config.AppConfig, fbApp *firebase.App) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := idb.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		hub, err := idb.NewChangeHub(cfg.DatabaseURL, logger.For("pg_listener"))
		if err != nil {
			db.Close()
			return nil, err
		}
		permissions := idb.NewPostgresPermissionRepository(db, cfg.NotifyDefaultGranted)
		return &stores{
			reminders:   idb.NewPostgresReminderRepository(db, hub),
			pets:        idb.NewPostgresPetRepository(db),
			records:     idb.NewPostgresRecordRepository(db),
			permissions: permissions,
			tokens:      permissions,
			closers:     []func() error{db.Close, hub.Close},
		}, nil

	case config.StoreFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting Firestore client: %w", err)
		}
		permissions := ifs.NewPermissionStore(client, cfg.NotifyDefaultGranted)
		return &stores{
			reminders:   ifs.NewReminderStore(client, logger.For("firestore")),
			pets:        ifs.NewPetStore(client),
			records:     ifs.NewRecordStore(client),
			permissions: permissions,
			tokens:      permissions,
			closers:     []func() error{client.Close},
		}, nil

	default:
		return &stores{
			reminders:   memstore.NewReminderStore(),
			pets:        memstore.NewPetStore(),
			records:     memstore.NewRecordStore(),
			permissions: memstore.NewPermissionStore(cfg.NotifyDefaultGranted),
			tokens:      memstore.NewDeviceTokenStore(),
		}, nil
	}
}

func newDispatcher(ctx context.Context, cfg *config.AppConfig, bot *telebot.Bot, fbApp *firebase.App, st *stores) (notification.Dispatcher, error) {
	switch cfg.DispatchChannel {
	case config.ChannelTelegram:
		return telegram.NewDispatcher(telegram.NewTelebotAdapter(bot), logger.For("telegram_dispatch")), nil
	case config.ChannelFCM:
		return push.NewFCMDispatcher(ctx, fbApp, st.tokens, logger.For("fcm"))
	default:
		return scheduler.NewLogDispatcher(logger.For("log_dispatch")), nil
	}
}
