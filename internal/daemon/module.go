package daemon

import (
	"context"
	"fmt"

	"github.com/matheus3301/outreach/internal/api"
	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/clock"
	"github.com/matheus3301/outreach/internal/config"
	"github.com/matheus3301/outreach/internal/lock"
	"github.com/matheus3301/outreach/internal/logging"
	"github.com/matheus3301/outreach/internal/scheduler"
	"github.com/matheus3301/outreach/internal/seed"
	"github.com/matheus3301/outreach/internal/state"
	"github.com/matheus3301/outreach/internal/status"
	"github.com/matheus3301/outreach/internal/store"
	"github.com/matheus3301/outreach/internal/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved workspace configuration passed to the fx module.
type Params struct {
	Workspace  string
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideDB,
			provideStore,
			NewRegistry,
			provideScheduler,
			provideRollover,
			providePersister,
			provideService,
			NewServer,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if err := workspace.EnsureDir(p.Workspace); err != nil {
		return nil, err
	}
	return config.Load(workspace.WorkspaceConfigPath(p.Workspace))
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(workspace.LogPath(p.Workspace), p.Workspace, cfg.Daemon.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring workspace lock", zap.String("workspace", p.Workspace))
	l, err := lock.Acquire(workspace.Dir(p.Workspace))
	if err != nil {
		return nil, err
	}
	logger.Info("workspace lock acquired")
	return l, nil
}

// provideDB depends on the lock so that the database is never opened by a
// second daemon.
func provideDB(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := workspace.DBPath(p.Workspace)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideStore loads the saved snapshot, seeding an empty database when
// the config allows it.
func provideStore(db *store.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*state.Store, error) {
	ctx := context.Background()
	empty, err := db.IsEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect store: %w", err)
	}

	clk := clock.Real{}
	if empty && cfg.Seed.Enabled {
		snap, err := seed.Load(cfg.Seed.Path, clk.Now())
		if err != nil {
			return nil, err
		}
		if err := db.SaveSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("save seed: %w", err)
		}
		logger.Info("workspace seeded",
			zap.String("source", seedSource(cfg.Seed.Path)),
			zap.Int("accounts", len(snap.Accounts)),
			zap.Int("campaigns", len(snap.Campaigns)),
			zap.Int("messages", len(snap.Messages)))
		return state.New(snap, b, clk), nil
	}

	snap, err := db.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("snapshot loaded",
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("campaigns", len(snap.Campaigns)),
		zap.Int("messages", len(snap.Messages)))
	return state.New(snap, b, clk), nil
}

func seedSource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

func provideScheduler(st *state.Store, cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.New(st, cfg.SchedulerConfig(), logger.Named("scheduler"),
		scheduler.WithMetrics(scheduler.NewMetrics(reg)))
}

func provideRollover(st *state.Store, logger *zap.Logger) *scheduler.Rollover {
	return scheduler.NewRollover(st, nil, logger.Named("rollover"))
}

func providePersister(db *store.DB, st *state.Store, b *bus.Bus, logger *zap.Logger) *store.Persister {
	return store.NewPersister(db, st, b, logger.Named("persister"))
}

func provideService(p Params, st *state.Store, sched *scheduler.Scheduler, m *status.Machine, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(p.Workspace, st, sched, m, b, logger.Named("api"))
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	metrics *MetricsServer,
	lk *lock.Lock,
	db *store.DB,
	sched *scheduler.Scheduler,
	rollover *scheduler.Rollover,
	persister *store.Persister,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Persist from here on, so the recovery below is saved.
			persister.Start(context.Background())
			_ = machine.Transition(status.Recovering)
			sched.Recover()

			if err := metrics.Start(); err != nil {
				_ = machine.Transition(status.Error)
				_ = persister.Stop(context.Background())
				return fmt.Errorf("metrics endpoint: %w", err)
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			rollover.Start()
			sched.Start(context.Background())
			_ = machine.Transition(status.Running)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			srv.Stop(ctx)
			if err := sched.Stop(ctx); err != nil {
				logger.Warn("scheduler did not drain", zap.Error(err))
			}
			rollover.Stop()
			if err := metrics.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics endpoint", zap.Error(err))
			}
			if err := persister.Stop(context.WithoutCancel(ctx)); err != nil {
				logger.Error("final snapshot save failed", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
