package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/catalog"
	"github.com/openfroyo/bootcoord/pkg/config"
	"github.com/openfroyo/bootcoord/pkg/hostsync"
	"github.com/openfroyo/bootcoord/pkg/prefs"
	"github.com/openfroyo/bootcoord/pkg/scene"
	"github.com/openfroyo/bootcoord/pkg/stores"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// runtime is one wired host: the coordinator, its collaborators, and the
// synchronizer driving it.
type runtime struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	store   *stores.SQLiteStore
	prefs   *prefs.Store
	catalog *catalog.Catalog
	graph   *scene.Graph
	host    *hostsync.HostState
	coord   *boot.Coordinator
	syncer  *hostsync.Synchronizer
}

// openStore opens and migrates the state database.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	if cfg.State.Path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.State.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newRuntime wires a host. An interactive host bootstraps both well-known keys and
// blocks while doing so in edit mode; run mode and production hosts bootstrap
// asynchronously.
func newRuntime(ctx context.Context, cfg *config.Config, interactive bool, version string) (*runtime, error) {
	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = version
	tel, err := telemetry.NewTelemetry(&tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Journal.Enabled {
		if cfg.Journal.Keep > 0 {
			if n, err := store.PruneJournal(ctx, cfg.Journal.Keep); err != nil {
				tel.Logger.WithError(err).Warn("Failed to prune journal")
			} else if n > 0 {
				tel.Logger.Debugf("Pruned %d journal entries", n)
			}
		}
		tel.Events.Subscribe(stores.JournalSubscriber(store, tel.Logger), nil)
	}

	cat, err := catalog.Open(cfg.Catalog.Dir, catalog.Options{Latency: cfg.Catalog.Latency, Logger: tel.Logger})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	graph := scene.NewGraph(scene.Options{Latency: cfg.Scene.Latency, Logger: tel.Logger})
	host := hostsync.NewHostState(interactive)

	keys := cfg.KeysFor(boot.ContextProduction)
	if interactive {
		keys = cfg.KeysFor(boot.ContextInteractive)
	}

	coord := boot.NewCoordinator(cat, graph, boot.Options{
		Context: func() boot.ExecContext {
			if !host.Interactive() || host.InRunMode() {
				return boot.ContextProduction
			}
			return boot.ContextInteractive
		},
		Keys:    func(boot.ExecContext) []string { return keys },
		Logger:  tel.Logger,
		Metrics: tel.Metrics,
		Tracer:  tel.Tracer,
		Events:  tel.Events,
	})

	ps := prefs.New(store, tel.Logger)
	syncer := hostsync.New(coord, host, ps, hostsync.Options{
		Logger:  tel.Logger,
		Metrics: tel.Metrics,
		Events:  tel.Events,
	})

	return &runtime{
		cfg:     cfg,
		tel:     tel,
		store:   store,
		prefs:   ps,
		catalog: cat,
		graph:   graph,
		host:    host,
		coord:   coord,
		syncer:  syncer,
	}, nil
}

// setRunMode switches the host and the scene together.
func (r *runtime) setRunMode(on bool) {
	r.graph.SetRunMode(on)
	r.host.SetRunMode(on)
}

// Close flushes telemetry and closes the state database.
func (r *runtime) Close(ctx context.Context) error {
	return errors.Join(r.tel.Shutdown(ctx), r.store.Close())
}
