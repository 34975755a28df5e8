package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealwatch/dealwatch/internal/common/metrics"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/database"
	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
	"github.com/dealwatch/dealwatch/internal/tracker/discord"
	"github.com/dealwatch/dealwatch/internal/tracker/dispatch"
	"github.com/dealwatch/dealwatch/internal/tracker/events"
	"github.com/dealwatch/dealwatch/internal/tracker/scheduler"
	"github.com/dealwatch/dealwatch/internal/tracker/service"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
	"github.com/dealwatch/dealwatch/internal/tracker/store"
	"github.com/dealwatch/dealwatch/pkg"
)

const (
	dealsCollection     = "deals"
	freeDealsCollection = "free-deals"
	articlesCollection  = "articles"

	rfdMinuteStep = 5

	migrationsDir = "migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start service: %v\n", err)
		os.Exit(1)
	}
}

//nolint:funlen // Sequential wiring of every pipeline component.
func run() error {
	appLogger := pkg.NewLogger(os.Stdout)

	cfg := config.LoadConfig()
	if cfg == nil {
		return errors.New("failed to load configuration")
	}

	ctx := context.Background()

	var pool *pgxpool.Pool

	if cfg.StoreType == config.PostgresStore {
		if err := database.RunMigrations(cfg.DatabaseURL, migrationsDir, appLogger); err != nil {
			appLogger.Error("failed to apply migrations", "error", err)
			return err
		}

		db, err := database.NewPostgresDB(ctx, cfg, appLogger)
		if err != nil {
			appLogger.Error("failed to connect to postgres", "error", err)
			return err
		}

		defer db.Close()

		pool = db.Pool
	}

	baselineStore, err := store.NewStore(ctx, cfg, pool, appLogger)
	if err != nil {
		appLogger.Error("failed to create baseline store", "error", err)
		return err
	}

	publisher := newPublisher(cfg, appLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("failed to close event publisher", "error", err)
		}
	}()

	transport := discord.NewClient(cfg, appLogger)
	pacer := dispatch.NewPacer(cfg.SendDelay)

	jobScheduler := scheduler.NewScheduler(appLogger)

	deals := buildDealsService(cfg, baselineStore, transport, pacer, publisher, appLogger)
	jobScheduler.Add("deals", deals, cfg.DealsInterval)

	freeDeals := buildFreeDealsService(cfg, baselineStore, transport, pacer, publisher, appLogger)
	jobScheduler.Add("free-deals", freeDeals, cfg.FreeDealsInterval)

	if feeds := cfg.ParseRSSFeeds(); len(feeds) > 0 {
		articles := buildRSSService(cfg, feeds, baselineStore, transport, pacer, publisher, appLogger)
		jobScheduler.Add("rss", articles, cfg.RSSInterval)
	}

	jobScheduler.Start()

	metricsServer := metrics.NewMetricsServer(cfg.MetricsPort, appLogger)

	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()

	go func() {
		if err := metricsServer.Start(metricsCtx); err != nil {
			appLogger.Error("metrics server failed", "error", err)
		}
	}()

	appLogger.Info("service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	appLogger.Info("received shutdown signal", "signal", sig.String())

	jobScheduler.Stop()
	cancelMetrics()

	appLogger.Info("service stopped")

	return nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if !cfg.KafkaEnabled {
		return events.NopPublisher{}
	}

	return events.NewKafkaPublisher(
		strings.Split(cfg.KafkaBrokers, ","),
		cfg.TopicItemEvents,
		cfg.TopicItemEventsDLQ,
		logger,
	)
}

func buildDealsService(
	cfg *config.Config,
	baselineStore store.Store,
	transport *discord.Client,
	pacer *dispatch.Pacer,
	publisher events.Publisher,
	logger *slog.Logger,
) *service.TrackerService {
	registry := sources.NewDealRegistry(cfg)
	collection := store.NewCollection(baselineStore, dealsCollection)
	snapshot := store.NewSnapshot(collection, logger)

	auth := sources.NewRedditAuth(cfg, logger)

	adapters := []sources.Adapter{
		sources.NewSubredditAdapter(models.BapcSalesCanada, auth, cfg, logger),
		sources.NewSubredditAdapter(models.GameDeals, auth, cfg, logger),
		sources.NewSubredditAdapter(models.VideoGameDealsCanada, auth, cfg, logger),
		sources.NewMinuteGate(sources.NewRFDAdapter(cfg, logger), rfdMinuteStep),
	}

	reconciler := core.NewReconciler(
		registry,
		core.NewUpdatePolicy(logger),
		cfg.RetentionWindow,
		cfg.DeletedInferenceWindow,
		logger,
	)

	dispatcher := dispatch.NewDispatcher(registry, transport, collection, pacer, logger)
	alerter := dispatch.NewAlertMatcher(registry, transport, pacer, cfg.DiscordServerID, cfg.ChannelDealAlerts, logger)

	return service.NewTrackerService(
		"deals", adapters, snapshot, collection, reconciler,
		dispatcher, publisher, cfg.DealsCycleTimeout, logger,
	).WithAlerts(alerter, baselineStore)
}

func buildFreeDealsService(
	cfg *config.Config,
	baselineStore store.Store,
	transport *discord.Client,
	pacer *dispatch.Pacer,
	publisher events.Publisher,
	logger *slog.Logger,
) *service.TrackerService {
	registry := sources.NewFreeDealRegistry(cfg)
	collection := store.NewCollection(baselineStore, freeDealsCollection)
	snapshot := store.NewSnapshot(collection, logger)

	adapters := []sources.Adapter{
		sources.NewSteamAdapter(cfg, logger),
		sources.NewGOGAdapter(cfg, logger),
		sources.NewEpicAdapter(cfg, logger),
	}

	reconciler := core.NewReconciler(
		registry,
		core.NewUpdatePolicy(logger),
		cfg.RetentionWindow,
		cfg.DeletedInferenceWindow,
		logger,
	)

	dispatcher := dispatch.NewDispatcher(registry, transport, collection, pacer, logger)

	return service.NewTrackerService(
		"free-deals", adapters, snapshot, collection, reconciler,
		dispatcher, publisher, cfg.FreeDealsCycleTimeout, logger,
	)
}

func buildRSSService(
	cfg *config.Config,
	feeds []config.RSSFeed,
	baselineStore store.Store,
	transport *discord.Client,
	pacer *dispatch.Pacer,
	publisher events.Publisher,
	logger *slog.Logger,
) *service.TrackerService {
	registry := sources.NewRSSRegistry(feeds)
	collection := store.NewCollection(baselineStore, articlesCollection)
	snapshot := store.NewSnapshot(collection, logger)

	adapters := make([]sources.Adapter, 0, len(feeds))
	for _, feed := range feeds {
		adapters = append(adapters, sources.NewRSSAdapter(feed, cfg.RedditUserAgent, logger))
	}

	reconciler := core.NewReconciler(
		registry,
		core.NewUpdatePolicy(logger),
		cfg.RetentionWindow,
		cfg.DeletedInferenceWindow,
		logger,
	)

	dispatcher := dispatch.NewDispatcher(registry, transport, collection, pacer, logger)

	return service.NewTrackerService(
		"rss", adapters, snapshot, collection, reconciler,
		dispatcher, publisher, cfg.RSSCycleTimeout, logger,
	)
}
