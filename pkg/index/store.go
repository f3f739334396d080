package index

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/keyparse"
	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// SnapshotRequest asks for an independent copy of the index tree,
// optionally restricted to one namespace. The reply channel should be
// buffered; a reply to an abandoned request is dropped.
type SnapshotRequest struct {
	Namespace string
	Reply     chan<- Tree
}

// Config wires the store to its peers.
type Config struct {
	// FromIngest carries announcements from the simulation endpoint.
	FromIngest <-chan types.ObjectRecord
	// FromRefresher carries records produced by full pool sweeps.
	FromRefresher <-chan types.ObjectRecord
	// Requests carries index snapshot requests from the backend.
	Requests <-chan SnapshotRequest
	// PushOut receives every inserted ingest record, hash resolved, for
	// delivery to connected backends.
	PushOut chan<- types.ObjectRecord
	// RequestHash enqueues a cluster hash lookup; the result arrives on
	// the given reply channel.
	RequestHash func(rec types.ObjectRecord, reply chan<- types.ObjectRecord)
	// SweepTrigger signals the refresher to perform a full sweep.
	SweepTrigger chan<- struct{}

	// WarmUp delays the first sweep after start; zero selects 5s.
	WarmUp time.Duration
	// SweepPeriod is the interval between periodic sweeps; zero selects
	// 10 minutes.
	SweepPeriod time.Duration
}

const (
	defaultWarmUp      = 5 * time.Second
	defaultSweepPeriod = 10 * time.Minute
)

// Store owns the index tree and the admitted-coordinate set. All state
// is confined to the Run goroutine; other components communicate through
// the configured channels. Add and Snapshot must only be called from the
// owning goroutine (or before Run starts, as the tests do).
type Store struct {
	cfg      Config
	tree     Tree
	admitted map[string]struct{}

	hashReplies chan types.ObjectRecord
	logger      zerolog.Logger
}

// New creates an empty store.
func New(cfg Config) *Store {
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = defaultWarmUp
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = defaultSweepPeriod
	}
	return &Store{
		cfg:         cfg,
		tree:        Tree{},
		admitted:    make(map[string]struct{}),
		hashReplies: make(chan types.ObjectRecord, 256),
		logger:      log.Core(),
	}
}

// Run drives the store until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info().Msg("starting index store")

	sweep := time.NewTimer(s.cfg.WarmUp)
	defer sweep.Stop()

	for {
		select {
		case rec := <-s.cfg.FromIngest:
			s.handleIngest(ctx, rec)

		case rec := <-s.hashReplies:
			// hash lookup round-trip complete; the hash may still be
			// empty when the cluster could not provide one
			s.Add(rec)
			s.forward(ctx, rec)

		case rec := <-s.cfg.FromRefresher:
			s.Add(rec)
			s.drainRefresher()

		case req := <-s.cfg.Requests:
			s.serveSnapshot(req)

		case <-sweep.C:
			s.logger.Info().Msg("triggering index sweep")
			select {
			case s.cfg.SweepTrigger <- struct{}{}:
			default:
				// a sweep is already pending
			}
			sweep.Reset(s.cfg.SweepPeriod)

		case <-ctx.Done():
			s.logger.Debug().Msg("index store shut down")
			return nil
		}
	}
}

// handleIngest processes one announcement. Records without a hash take a
// detour through the cluster arbiter and are inserted when the lookup
// result arrives.
func (s *Store) handleIngest(ctx context.Context, rec types.ObjectRecord) {
	if !rec.HasHash() {
		s.cfg.RequestHash(rec, s.hashReplies)
		return
	}
	s.Add(rec)
	s.forward(ctx, rec)
}

// drainRefresher processes queued sweep records back-to-back. During a
// sweep the channel carries thousands of records per second; batching
// here keeps the sweep from interleaving with the blocking select.
func (s *Store) drainRefresher() {
	for {
		select {
		case rec := <-s.cfg.FromRefresher:
			s.Add(rec)
		default:
			return
		}
	}
}

func (s *Store) forward(ctx context.Context, rec types.ObjectRecord) {
	select {
	case s.cfg.PushOut <- rec:
	case <-ctx.Done():
	}
}

func (s *Store) serveSnapshot(req SnapshotRequest) {
	metrics.IndexSnapshots.Inc()
	snap := s.Snapshot(req.Namespace)
	select {
	case req.Reply <- snap:
	default:
		s.logger.Debug().Msg("snapshot requester gone, dropping reply")
	}
}

// Add admits a record to the tree.
//
// Re-insertion of a known coordinate is idempotent: an empty incoming
// hash leaves the leaf untouched, a non-empty one updates it. A hash is
// never downgraded from non-empty back to empty. Keys that do not parse
// are logged at debug and discarded; the tree only ever contains
// parseable keys.
func (s *Store) Add(rec types.ObjectRecord) {
	coord := rec.Coordinate()

	if _, ok := s.admitted[coord]; ok {
		if rec.Sha1Sum == "" {
			return
		}
		if path, ok := treePath(rec); ok {
			if leaf := s.tree.leafAt(path); leaf != nil {
				leaf.Sha1Sum = rec.Sha1Sum
			}
		}
		return
	}

	path, ok := treePath(rec)
	if !ok {
		s.logger.Debug().
			Str("namespace", rec.Namespace).Str("key", rec.Key).
			Msg("cannot add file")
		return
	}

	s.tree.insert(path, &Leaf{ObjectKey: rec.Key, Sha1Sum: rec.Sha1Sum})
	s.admitted[coord] = struct{}{}
	metrics.IndexedObjects.Set(float64(len(s.admitted)))
}

// Present reports whether the coordinate has been admitted.
func (s *Store) Present(namespace, key string) bool {
	_, ok := s.admitted[namespace+"\t"+key]
	return ok
}

// Snapshot returns a deep copy of the tree. A non-empty namespace
// restricts the copy to that namespace's subtree; an unknown namespace
// yields an empty tree.
func (s *Store) Snapshot(namespace string) Tree {
	if namespace == "" {
		return s.tree.Copy()
	}
	sub, ok := s.tree[namespace].(Tree)
	if !ok {
		return Tree{}
	}
	return sub.Copy()
}

// treePath computes the full tree path for a record, namespace and
// timestep included.
func treePath(rec types.ObjectRecord) ([]string, bool) {
	parsed, err := keyparse.Parse(rec.Key)
	if err != nil {
		return nil, false
	}
	path := append([]string{rec.Namespace, parsed.Timestep}, parsed.TreePath()...)
	return path, true
}
