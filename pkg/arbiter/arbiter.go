package arbiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/cluster"
	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Layout describes how many pool connections serve each priority
// pattern. The pool must hold at least two connections in total.
type Layout struct {
	Data           int `yaml:"data"`
	Hashes         int `yaml:"hashes"`
	Tags           int `yaml:"tags"`
	NamespaceIndex int `yaml:"namespace_index"`
	Index          int `yaml:"index"`
}

// DefaultLayout is the standard pool partition.
var DefaultLayout = Layout{
	Data:           4,
	Hashes:         6,
	Tags:           2,
	NamespaceIndex: 8,
	Index:          1,
}

// Total returns the pool size the layout requires.
func (l Layout) Total() int {
	return l.Data + l.Hashes + l.Tags + l.NamespaceIndex + l.Index
}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if l.Index != 1 {
		return fmt.Errorf("layout needs exactly one index worker, got %d", l.Index)
	}
	if l.Total() < 2 {
		return fmt.Errorf("pool needs at least two connections, got %d", l.Total())
	}
	if l.Data < 1 || l.NamespaceIndex < 1 {
		return fmt.Errorf("layout needs at least one data and one namespace-index worker")
	}
	return nil
}

// Config holds arbiter construction parameters.
type Config struct {
	Connector cluster.Connector
	Layout    Layout
	// HashCacheSize bounds the sha1 lookup cache; 0 selects the default.
	HashCacheSize int
	// ScanTimeout bounds the wait for a single namespace scan during a
	// full index read; 0 selects the default.
	ScanTimeout time.Duration
}

const (
	defaultHashCacheSize = 4096
	defaultScanTimeout   = 60 * time.Second
	queueDepth           = 1024
	primaryWait          = 100 * time.Millisecond
)

// Arbiter fans storage tasks across a pool of persistent cluster
// connections. Tasks are classified by kind and routed through per-kind
// queues; each connection drains the queues in the order of its priority
// pattern so interactive reads are not starved by background scans.
type Arbiter struct {
	connector   cluster.Connector
	layout      Layout
	scanTimeout time.Duration

	dataQ  chan DataRequest
	hashQ  chan HashRequest
	tagsQ  chan TagsRequest
	scanQ  chan nsScanTask
	indexQ chan IndexRequest

	scanResults chan types.NamespaceListing

	hashCache *lru.Cache[string, string]
	logger    zerolog.Logger
}

// New creates an arbiter. The pool is not connected until Run.
func New(cfg Config) (*Arbiter, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	size := cfg.HashCacheSize
	if size <= 0 {
		size = defaultHashCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ScanTimeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	return &Arbiter{
		connector:   cfg.Connector,
		layout:      cfg.Layout,
		scanTimeout: timeout,
		dataQ:       make(chan DataRequest, queueDepth),
		hashQ:       make(chan HashRequest, queueDepth),
		tagsQ:       make(chan TagsRequest, queueDepth),
		scanQ:       make(chan nsScanTask, queueDepth),
		indexQ:      make(chan IndexRequest, queueDepth),
		scanResults: make(chan types.NamespaceListing, queueDepth),
		hashCache:   cache,
		logger:      log.Core(),
	}, nil
}

// Run connects the pool and serves tasks until ctx is cancelled. A
// connection failure during startup is returned as an error; the caller
// treats it as fatal.
func (a *Arbiter) Run(ctx context.Context) error {
	workers, err := a.connectPool(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().Int("connections", len(workers)).Msg("cluster pool connected")

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()

	for _, w := range workers {
		if err := w.conn.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("closing pool connection")
		}
	}
	return nil
}

func (a *Arbiter) connectPool(ctx context.Context) ([]*worker, error) {
	plan := []struct {
		pattern pattern
		count   int
	}{
		{patternData, a.layout.Data},
		{patternHashes, a.layout.Hashes},
		{patternTags, a.layout.Tags},
		{patternNamespaceIndex, a.layout.NamespaceIndex},
		{patternIndex, a.layout.Index},
	}

	var workers []*worker
	for _, p := range plan {
		for i := 0; i < p.count; i++ {
			conn, err := a.connector.Connect(ctx)
			if err != nil {
				for _, w := range workers {
					w.conn.Close()
				}
				return nil, fmt.Errorf("connecting pool worker %s/%d: %w", p.pattern, i, err)
			}
			workers = append(workers, newWorker(a, conn, p.pattern, strconv.Itoa(i)))
		}
		metrics.PoolWorkers.WithLabelValues(string(p.pattern)).Set(float64(p.count))
	}
	return workers, nil
}

// ReadObjectData enqueues a user-interactive object fetch.
func (a *Arbiter) ReadObjectData(req DataRequest) {
	a.dataQ <- req
}

// ReadObjectHash enqueues a hash lookup. Cached results are answered
// immediately without a cluster round-trip.
func (a *Arbiter) ReadObjectHash(req HashRequest) {
	coord := req.Namespace + "\t" + req.Key
	if sum, ok := a.hashCache.Get(coord); ok {
		metrics.HashCacheHits.Inc()
		replyTo(req.Reply, types.ObjectRecord{
			Namespace: req.Namespace, Key: req.Key, Sha1Sum: sum,
		})
		return
	}
	a.hashQ <- req
}

// ReadObjectTags enqueues a tags-only fetch.
func (a *Arbiter) ReadObjectTags(req TagsRequest) {
	a.tagsQ <- req
}

// ReadIndex enqueues a full pool scan.
func (a *Arbiter) ReadIndex(req IndexRequest) {
	a.indexQ <- req
}

// replyTo delivers a result without blocking. Reply channels are
// buffered by their owners; a full channel means the requester is gone
// and the result is dropped.
func replyTo[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
