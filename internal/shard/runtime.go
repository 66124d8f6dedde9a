// Package shard wires the per-process runtime: language loading, the query
// broadcast listener, the scheduled watcher cycle, and the health server.
package shard

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/steamhub/internal/config"
	"github.com/dyluth/steamhub/internal/language"
	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/internal/metrics"
	"github.com/dyluth/steamhub/internal/query"
	"github.com/dyluth/steamhub/internal/watcher"
	"github.com/dyluth/steamhub/pkg/records"
)

// Deps are the collaborators a shard needs besides the store.
type Deps struct {
	Catalog   watcher.Catalog
	Transport watcher.Transport
	Logger    *zap.Logger
	Version   string

	// Registry receives the shard's Prometheus collectors and backs /metrics.
	// A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Runtime is one running shard.
type Runtime struct {
	cfg         *config.Config
	shardID     int
	client      *records.Client
	languages   *language.Hub
	watchers    *watcher.Engine
	coordinator *query.Coordinator
	health      *HealthServer
	logger      *zap.Logger
}

// New assembles a shard. Languages are loaded from cfg.Languages.Dir before
// New returns.
func New(ctx context.Context, cfg *config.Config, shardID int, client *records.Client, deps Deps) (*Runtime, error) {
	if shardID < 0 || shardID >= cfg.Shards.Count {
		return nil, fmt.Errorf("shard id %d out of range (shards.count = %d)", shardID, cfg.Shards.Count)
	}

	logger := logging.OrNop(deps.Logger).With(zap.Int("shard", shardID))

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	hub := language.NewHub(client, cfg.Languages.Default, logger)
	if _, err := hub.LoadDir(ctx, cfg.Languages.Dir); err != nil {
		return nil, err
	}

	engine := watcher.NewEngine(client, deps.Catalog, deps.Transport, hub, watcher.Options{
		Cap:                 *cfg.Watcher.Cap,
		DeliveriesPerSecond: cfg.Watcher.DeliveriesPerSecond,
		Logger:              logger,
		Metrics:             m,
	})

	registry := query.Builtins(query.ShardInfo{
		ID:        shardID,
		Count:     cfg.Shards.Count,
		Version:   deps.Version,
		StartedAt: time.Now(),
		WatcherCount: func(ctx context.Context) (int, error) {
			all, err := engine.AllWatchers(ctx)
			return len(all), err
		},
	})

	coordinator, err := query.NewCoordinator(client, query.Options{
		ShardID:      shardID,
		ShardCount:   cfg.Shards.Count,
		Registry:     registry,
		PollInterval: cfg.Query.PollInterval.Std(),
		MaxPolls:     cfg.Query.MaxPolls,
		Logger:       logger,
		Metrics:      m,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:         cfg,
		shardID:     shardID,
		client:      client,
		languages:   hub,
		watchers:    engine,
		coordinator: coordinator,
		health:      NewHealthServer(cfg.Health.Addr, client, shardID, reg, logger),
		logger:      logger,
	}, nil
}

// Languages returns the language hub.
func (r *Runtime) Languages() *language.Hub {
	return r.languages
}

// Watchers returns the watcher engine.
func (r *Runtime) Watchers() *watcher.Engine {
	return r.watchers
}

// Coordinator returns the query coordinator.
func (r *Runtime) Coordinator() *query.Coordinator {
	return r.coordinator
}

// Health returns the health server.
func (r *Runtime) Health() *HealthServer {
	return r.health
}

// RunsWatchers reports whether this shard owns the watcher cycle.
func (r *Runtime) RunsWatchers() bool {
	return r.shardID == r.cfg.Watcher.Shard
}

// Run serves until ctx is cancelled or a component fails.
func (r *Runtime) Run(ctx context.Context) error {
	listener, err := r.coordinator.Listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to query broadcasts: %w", err)
	}
	defer listener.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.health.Run(gctx)
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})

	if r.RunsWatchers() {
		scheduler := NewScheduler(r.cfg.Watcher.Schedule, func(ctx context.Context) error {
			_, err := r.watchers.CheckWatchers(ctx, nil)
			return err
		}, r.logger)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	r.logger.Info("shard_started",
		zap.Int("shard_count", r.cfg.Shards.Count),
		zap.Bool("runs_watchers", r.RunsWatchers()))

	err = g.Wait()
	r.logger.Info("shard_stopped", zap.Error(err))
	return err
}
