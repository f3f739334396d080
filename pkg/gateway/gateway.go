package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
	"github.com/plattproject/cluster-gateway/pkg/backend"
	"github.com/plattproject/cluster-gateway/pkg/cluster"
	"github.com/plattproject/cluster-gateway/pkg/index"
	"github.com/plattproject/cluster-gateway/pkg/ingest"
	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/refresher"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Config assembles one gateway instance.
type Config struct {
	// Connector opens cluster connections. Leave nil to use the rados
	// CLI with the fields below.
	Connector cluster.Connector
	// ClusterConfig is the path to the cluster configuration and
	// keyring file.
	ClusterConfig string
	// Pool is the storage pool the gateway fronts.
	Pool string
	// User is the cluster user.
	User string

	// BackendAddr is the analytics-facing listen address.
	BackendAddr string
	// SimulationAddr is the simulation-facing listen address.
	SimulationAddr string
	// MetricsAddr exposes Prometheus metrics when non-empty.
	MetricsAddr string

	Settings Settings
}

// Gateway couples a simulation, an object-storage cluster and an
// analytics backend. New binds both endpoints; Run connects the cluster
// pool and serves until the context is cancelled.
type Gateway struct {
	cfg Config

	arbiter   *arbiter.Arbiter
	store     *index.Store
	refresher *refresher.Refresher
	ingest    *ingest.Endpoint
	backend   *backend.Endpoint

	logger zerolog.Logger
}

// New wires the gateway components together and binds the listeners.
func New(cfg Config) (*Gateway, error) {
	connector := cfg.Connector
	if connector == nil {
		connector = cluster.NewRadosCLI(cfg.ClusterConfig, cfg.Pool, cfg.User)
	}

	arb, err := arbiter.New(arbiter.Config{
		Connector:     connector,
		Layout:        cfg.Settings.PoolLayout,
		HashCacheSize: cfg.Settings.HashCacheSize,
		ScanTimeout:   cfg.Settings.ScanTimeout.Std(),
	})
	if err != nil {
		return nil, err
	}

	ingestCh := make(chan types.ObjectRecord, 256)
	refreshCh := make(chan types.ObjectRecord, 1024)
	snapshotCh := make(chan index.SnapshotRequest, 16)
	pushCh := make(chan types.ObjectRecord, 256)
	sweepCh := make(chan struct{}, 1)

	store := index.New(index.Config{
		FromIngest:    ingestCh,
		FromRefresher: refreshCh,
		Requests:      snapshotCh,
		PushOut:       pushCh,
		RequestHash: func(rec types.ObjectRecord, reply chan<- types.ObjectRecord) {
			arb.ReadObjectHash(arbiter.HashRequest{
				Namespace: rec.Namespace, Key: rec.Key, Reply: reply,
			})
		},
		SweepTrigger: sweepCh,
		WarmUp:       cfg.Settings.WarmUp.Std(),
		SweepPeriod:  cfg.Settings.SweepPeriod.Std(),
	})

	refr := refresher.New(refresher.Config{
		Arbiter:  arb,
		Triggers: sweepCh,
		Out:      refreshCh,
	})

	ing, err := ingest.New(ingest.Config{
		Addr: cfg.SimulationAddr,
		Out:  ingestCh,
	})
	if err != nil {
		return nil, err
	}

	be, err := backend.New(backend.Config{
		Addr:            cfg.BackendAddr,
		Snapshots:       snapshotCh,
		Pushes:          pushCh,
		Arbiter:         arb,
		SnapshotTimeout: cfg.Settings.SnapshotTimeout.Std(),
		DownloadTimeout: cfg.Settings.DownloadTimeout.Std(),
	})
	if err != nil {
		ing.Close()
		return nil, err
	}

	return &Gateway{
		cfg:       cfg,
		arbiter:   arb,
		store:     store,
		refresher: refr,
		ingest:    ing,
		backend:   be,
		logger:    log.Core(),
	}, nil
}

// BackendAddr returns the bound analytics-facing address.
func (g *Gateway) BackendAddr() net.Addr { return g.backend.Addr() }

// SimulationAddr returns the bound simulation-facing address.
func (g *Gateway) SimulationAddr() net.Addr { return g.ingest.Addr() }

// Run serves until ctx is cancelled or a component fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info().Str("pool", g.cfg.Pool).Msg("gateway starting")
	g.logger.Info().
		Str("addr", g.backend.Addr().String()).
		Msg("connect the backend to this address")
	g.logger.Info().
		Str("addr", g.ingest.Addr().String()).
		Msg("send new-object announcements to this address")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return g.arbiter.Run(ctx) })
	group.Go(func() error { return g.store.Run(ctx) })
	group.Go(func() error { return g.refresher.Run(ctx) })
	group.Go(func() error { return g.ingest.Run(ctx) })
	group.Go(func() error { return g.backend.Run(ctx) })
	if g.cfg.MetricsAddr != "" {
		group.Go(func() error { return g.serveMetrics(ctx) })
	}
	return group.Wait()
}

func (g *Gateway) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: g.cfg.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	g.logger.Info().Str("addr", g.cfg.MetricsAddr).Msg("metrics endpoint listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics endpoint: %w", err)
	}
	return nil
}
