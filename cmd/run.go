package cmd

import (
	"context"
	"fmt"
	"time"

	"watchparty/application"
	"watchparty/config"
	"watchparty/database"
	"watchparty/domain/events"
	"watchparty/domain/interfaces"
	"watchparty/domain/services"
	"watchparty/infrastructure"
	"watchparty/infrastructure/adminapi"
	"watchparty/infrastructure/matchsource"
	"watchparty/infrastructure/observability"
	"watchparty/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ConfigureLogging()
	log.WithField("environment", cfg.Environment).Info("Starting watch party service...")

	checks := map[string]adminapi.HealthFunc{}

	// Initialize metrics
	promRegistry := prometheus.NewRegistry()
	metricsProvider := observability.NewMetricsProvider(cfg, promRegistry)
	if err := metricsProvider.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize event publisher
	var publisher interfaces.EventPublisher
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers, cfg.OTelServiceName)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := natsClient.Connect(connectCtx)
		cancel()
		if err != nil {
			return err
		}

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureDomainEventStream(natsClient); err != nil {
			natsClient.Close()
			return err
		}
		natsPublisher.RegisterLocalHandler(events.EventTypeWatchPartyStatusChange, logRemovedParticipants)
		publisher = natsPublisher
		checks["nats"] = func(ctx context.Context) error {
			if !natsClient.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	} else {
		log.Info("NATS_SERVERS not set, domain events will not be published")
		publisher = infrastructure.NewNoopEventPublisher()
	}

	// Initialize balance history
	var recorder interfaces.BalanceHistoryRecorder
	var db *database.DB
	stopHistory := func() {}
	if cfg.HistoryEnabled() {
		var err error
		db, err = database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
			MaxConns: cfg.DatabaseMaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")

		worker := application.NewBalanceHistoryWorker(repository.NewBalanceHistoryRepository(db), cfg.HistoryBuffer)
		stopHistory = worker.Start(ctx)
		recorder = worker
		checks["database"] = func(ctx context.Context) error {
			return db.Ping(ctx)
		}
	} else {
		log.Info("DATABASE_URL not set, balance history will not be persisted")
	}

	// Initialize domain services
	registry := services.NewWatchPartyRegistry(services.PartyDependencies{
		Ledger:     services.NewLedger(recorder, publisher),
		Admins:     services.NewStaticAdminChecker(cfg.AdminDiscordIDs),
		Random:     services.NewLockedRandom(time.Now().UnixNano()),
		Publisher:  publisher,
		Metrics:    metricsProvider,
		Clock:      time.Now,
		JoinBonus:  cfg.JoinBonus,
		OpenWindow: cfg.OpenWindow,
	})
	wagerService := services.NewWagerService(registry, metricsProvider)

	// Initialize match source
	var source interfaces.MatchDataSource = matchsource.NewHTTPSource(cfg.MatchSourceURL, cfg.MatchSourceTimeout)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		source = matchsource.NewCachedSource(source, redisClient, cfg.MatchCacheTTL, metricsProvider)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		log.WithField("addr", cfg.RedisAddr).Info("Match schedule cache enabled")
	}

	// Initialize scheduler
	scheduler := application.NewMatchScheduler(registry, source, wagerService, metricsProvider, application.SchedulerConfig{
		Interval:      cfg.SchedulerInterval,
		PartyTimeout:  cfg.SchedulerPartyTimeout,
		ShutdownGrace: cfg.ShutdownGrace,
	})
	registry.AttachScheduler(scheduler)
	if err := registry.Start(); err != nil {
		return fmt.Errorf("failed to start match scheduler: %w", err)
	}

	// Initialize admin API
	apiServer := adminapi.NewServer(cfg.AdminAPIAddr, registry, promRegistry, checks)
	apiServer.Start()

	log.Info("Watch party service is running")
	<-ctx.Done()

	log.Info("Shutting down watch party service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := registry.Shutdown(); err != nil {
		log.WithError(err).Error("Error stopping match scheduler")
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error stopping admin API")
	}

	stopHistory()
	if db != nil {
		log.Info("Closing database connection...")
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis client")
		}
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if err := metricsProvider.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics provider")
	}

	log.Info("Shutdown completed")
	return nil
}

func logRemovedParticipants(ctx context.Context, event events.Event) error {
	change, ok := event.(events.WatchPartyStatusChangeEvent)
	if !ok || len(change.Removed) == 0 {
		return nil
	}
	log.WithFields(log.Fields{
		"watchParty": change.WatchPartyName,
		"matchID":    change.MatchID,
		"removed":    change.Removed,
	}).Info("Removed participants from closed watch party")
	return nil
}
