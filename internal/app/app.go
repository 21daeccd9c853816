// Package app wires the engine's components from a Config. Both the server
// and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"driftwatch/internal/backend"
	"driftwatch/internal/cache"
	"driftwatch/internal/catalog"
	"driftwatch/internal/config"
	"driftwatch/internal/metrics"
	"driftwatch/internal/repository"
	"driftwatch/internal/service"
	"driftwatch/internal/transport/natspub"
)

// App holds the wired engine
type App struct {
	Config       *config.Config
	Log          *zap.Logger
	Catalog      *catalog.Catalog
	Backends     *backend.Registry
	Store        repository.ScoreStore
	Sessions     repository.SessionStore
	DriftBoard   cache.DriftBoardCache // nil without Redis
	Analyzer     *service.AnalyzerService
	Detector     *service.DriftService
	Orchestrator *service.OrchestratorService
	Aggregator   *service.AggregatorService
	Metrics      *metrics.Metrics

	notifiers []service.Notifier
	closers   []func(ctx context.Context) error
}

// New connects storage, caches and backends and builds the services.
// Call Close to release connections.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	var err error

	if a.Catalog, err = catalog.LoadOrDefault(cfg.Catalog.Path); err != nil {
		return nil, err
	}
	log.Info("catalog loaded", zap.Int("prompts", a.Catalog.Len()), zap.Strings("categories", a.Catalog.Categories()))

	var lex *service.Lexicon
	if cfg.Analyzer.LexiconPath != "" {
		if lex, err = service.LoadLexicon(cfg.Analyzer.LexiconPath); err != nil {
			return nil, err
		}
	}

	if a.Backends, err = backend.FromConfig(ctx, cfg.Backends); err != nil {
		return nil, err
	}
	log.Info("backends registered", zap.Strings("models", a.Backends.Names()))

	if err = a.openStore(ctx); err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		if rdb, err = a.openRedis(ctx); err != nil {
			return nil, err
		}
		a.DriftBoard = cache.NewDriftBoardCache(rdb)
		a.Store = repository.NewCachedStore(a.Store,
			cache.NewLatestCache(rdb),
			cache.NewAnalyticsCache(rdb, cfg.Aggregator.HeatmapCacheTTL),
			a.DriftBoard,
			log,
		)
	}

	a.Analyzer = service.NewAnalyzerService(lex, cfg.Analyzer.TopKeywords)
	a.Detector = service.NewDriftService(service.DriftPolicy{
		ReferenceWindow: cfg.Drift.ReferenceWindow,
		HighThreshold:   cfg.Drift.HighThreshold,
		MediumThreshold: cfg.Drift.MediumThreshold,
	})
	a.Orchestrator = a.NewOrchestrator(a.Backends)
	a.Orchestrator.SetMetrics(a.Metrics)

	a.Aggregator = service.NewAggregatorService(a.Store, service.AggregatorOptions{
		HeatmapWindow:    cfg.Aggregator.HeatmapWindow,
		AnomalyWindow:    cfg.Aggregator.AnomalyWindow,
		MinSampleSize:    cfg.Aggregator.MinSampleSize,
		ZThreshold:       cfg.Aggregator.ZThreshold,
		CorrelationFloor: cfg.Aggregator.CorrelationFloor,
	}, log.Named("aggregator"))

	if rdb != nil {
		a.Orchestrator.SetProgressCache(cache.NewSessionCache(rdb))
		a.Aggregator.SetCache(cache.NewAnalyticsCache(rdb, cfg.Aggregator.HeatmapCacheTTL))
	}

	if cfg.NATS.URL != "" {
		nc, err := natspub.Connect(cfg.NATS.URL, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return drain(nc) })
		a.AddNotifier(natspub.NewPublisher(nc, log.Named("natspub")))
		log.Info("publishing events to NATS", zap.String("url", cfg.NATS.URL))
	}

	ok = true
	return a, nil
}

// NewOrchestrator builds an orchestrator over the app's catalog, analyzer,
// detector and stores, driving the given backends
func (a *App) NewOrchestrator(backends *backend.Registry) *service.OrchestratorService {
	cfg := a.Config.Orchestrator
	return service.NewOrchestratorService(
		a.Catalog,
		backends,
		a.Analyzer,
		a.Detector,
		a.Store,
		a.Sessions,
		service.OrchestratorOptions{
			Concurrency:    cfg.Concurrency,
			MaxRetries:     cfg.MaxRetries,
			CallTimeout:    cfg.CallTimeout,
			InitialBackoff: cfg.InitialBackoff,
		},
		a.Log.Named("orchestrator"),
	)
}

// AddNotifier subscribes n to orchestrator events. Call before starting sessions.
func (a *App) AddNotifier(n service.Notifier) {
	a.notifiers = append(a.notifiers, n)
	a.Orchestrator.SetNotifier(service.MultiNotifier(a.notifiers))
}

// Close cancels running sessions and releases connections in reverse order
func (a *App) Close(ctx context.Context) error {
	if a.Orchestrator != nil {
		a.Orchestrator.Shutdown()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Driver {
	case "sqlite":
		store, err := repository.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.Store, a.Sessions = store, store
		a.Log.Info("using sqlite store", zap.String("path", cfg.Store.SQLitePath))

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}

		db := client.Database(cfg.Mongo.Database)
		a.Store = repository.NewMongoScoreRepo(ctx, db, a.Log)
		a.Sessions = repository.NewMongoSessionRepo(ctx, db, a.Log)
		a.Log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

func (a *App) openRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: a.Config.Redis.Addr,
	})
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	a.Log.Info("connected to Redis", zap.String("addr", a.Config.Redis.Addr))
	return rdb, nil
}

func drain(nc *nats.Conn) error {
	if err := nc.Drain(); err != nil {
		nc.Close()
		return err
	}
	return nil
}
