package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Config wires the refresher to its peers.
type Config struct {
	// Arbiter executes the full index scans.
	Arbiter *arbiter.Arbiter
	// Triggers carries sweep requests from the index store.
	Triggers <-chan struct{}
	// Out receives one record per object seen by a sweep.
	Out chan<- types.ObjectRecord

	// ResultTimeout bounds the wait for one scan result; zero selects
	// the default.
	ResultTimeout time.Duration
	// Attempts is the number of scan attempts per trigger; zero selects
	// the default.
	Attempts uint
}

const (
	defaultResultTimeout = 5 * time.Minute
	defaultAttempts      = 3
)

// Refresher turns sweep triggers into full pool scans and streams the
// results into the index store.
type Refresher struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a refresher.
func New(cfg Config) *Refresher {
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = defaultResultTimeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = defaultAttempts
	}
	return &Refresher{cfg: cfg, logger: log.Core()}
}

// Run serves sweep triggers until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		select {
		case <-r.cfg.Triggers:
			if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("index sweep failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// sweep performs one full pool scan. The scan request is retried when
// the arbiter drops it; the arbiter itself never retries.
func (r *Refresher) sweep(ctx context.Context) error {
	started := time.Now()

	result, err := retry.DoWithData(
		func() (arbiter.IndexResult, error) { return r.requestScan(ctx) },
		retry.Context(ctx),
		retry.Attempts(r.cfg.Attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	var objects int
	for _, listing := range result.Listings {
		for key, attrs := range listing.Objects {
			rec := types.ObjectRecord{
				Namespace: listing.Namespace,
				Key:       key,
				Sha1Sum:   attrs.Sha1Sum(),
			}
			select {
			case r.cfg.Out <- rec:
				objects++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	metrics.SweepObjects.Set(float64(objects))
	r.logger.Info().
		Int("namespaces", len(result.Listings)).
		Int("objects", objects).
		Dur("elapsed", time.Since(started)).
		Msg("index sweep complete")
	return nil
}

// requestScan issues a single ReadIndex task and waits for its result.
func (r *Refresher) requestScan(ctx context.Context) (arbiter.IndexResult, error) {
	reply := make(chan arbiter.IndexResult, 1)
	r.cfg.Arbiter.ReadIndex(arbiter.IndexRequest{Reply: reply})

	timer := time.NewTimer(r.cfg.ResultTimeout)
	defer timer.Stop()

	select {
	case result := <-reply:
		return result, nil
	case <-timer.C:
		return arbiter.IndexResult{}, fmt.Errorf("no scan result within %s", r.cfg.ResultTimeout)
	case <-ctx.Done():
		return arbiter.IndexResult{}, ctx.Err()
	}
}
