package arbiter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/cluster"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// pattern names a connection's priority pattern.
type pattern string

const (
	patternData           pattern = "data"
	patternHashes         pattern = "hashes"
	patternTags           pattern = "tags"
	patternNamespaceIndex pattern = "index_namespaces"
	patternIndex          pattern = "index"
)

// queueKind selects one of the per-kind task queues.
type queueKind int

const (
	queueData queueKind = iota
	queueHashes
	queueTags
	queueScan
	queueIndex
)

// slots returns the queue drain order for the pattern: the primary queue
// first, then the fallbacks peeked without blocking.
func (p pattern) slots() []queueKind {
	switch p {
	case patternData:
		return []queueKind{queueData, queueHashes, queueTags}
	case patternHashes:
		return []queueKind{queueHashes, queueTags, queueData}
	case patternTags:
		return []queueKind{queueTags, queueHashes, queueData}
	case patternNamespaceIndex:
		return []queueKind{queueScan, queueHashes, queueTags}
	case patternIndex:
		return []queueKind{queueIndex}
	default:
		return nil
	}
}

// worker owns one cluster connection and drains the task queues in its
// pattern's order.
type worker struct {
	a       *Arbiter
	conn    cluster.Conn
	pattern pattern
	slots   []queueKind
	logger  zerolog.Logger
}

func newWorker(a *Arbiter, conn cluster.Conn, p pattern, id string) *worker {
	return &worker{
		a:       a,
		conn:    conn,
		pattern: p,
		slots:   p.slots(),
		logger: a.logger.With().
			Str("pattern", string(p)).Str("worker", id).Logger(),
	}
}

// run is the worker loop. The worker blocks briefly on its primary
// queue, then peeks at the fallback queues without blocking. When a
// cycle served only fallback work, the next cycle skips the blocking
// wait on the primary so the fallback queue keeps draining quickly.
func (w *worker) run(ctx context.Context) {
	skipPrimary := false
	for {
		if ctx.Err() != nil {
			return
		}

		wait := primaryWait
		if skipPrimary {
			wait = 0
		}
		servedPrimary := w.serve(ctx, w.slots[0], wait)

		servedFallback := false
		for _, kind := range w.slots[1:] {
			if w.serve(ctx, kind, 0) {
				servedFallback = true
			}
		}
		skipPrimary = servedFallback && !servedPrimary
	}
}

// serve attempts to pull one task from the given queue, waiting at most
// wait. It reports whether a task was executed.
func (w *worker) serve(ctx context.Context, kind queueKind, wait time.Duration) bool {
	switch kind {
	case queueData:
		req, ok := recvWait(ctx, w.a.dataQ, wait)
		if ok {
			w.doData(ctx, req)
		}
		return ok
	case queueHashes:
		req, ok := recvWait(ctx, w.a.hashQ, wait)
		if ok {
			w.doHash(ctx, req)
		}
		return ok
	case queueTags:
		req, ok := recvWait(ctx, w.a.tagsQ, wait)
		if ok {
			w.doTags(ctx, req)
		}
		return ok
	case queueScan:
		task, ok := recvWait(ctx, w.a.scanQ, wait)
		if ok {
			w.doScan(ctx, task)
		}
		return ok
	case queueIndex:
		req, ok := recvWait(ctx, w.a.indexQ, wait)
		if ok {
			w.doIndex(ctx, req)
		}
		return ok
	}
	return false
}

// recvWait receives from ch, waiting at most wait (0 means non-blocking).
func recvWait[T any](ctx context.Context, ch <-chan T, wait time.Duration) (T, bool) {
	var zero T
	if wait <= 0 {
		select {
		case v := <-ch:
			return v, true
		default:
			return zero, false
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// doData fetches an object's bytes and tags. Transient errors drop the
// task; the requester times out on its reply channel.
func (w *worker) doData(ctx context.Context, req DataRequest) {
	w.conn.SetNamespace(req.Namespace)
	defer w.conn.SetNamespace("")

	val, err := cluster.ReadObjectBytes(ctx, w.conn, req.Object)
	if err != nil {
		w.fail(KindReadObjectData, req.Namespace, req.Object, err)
		return
	}
	tags, err := cluster.ObjectTags(ctx, w.conn, req.Object)
	if err != nil {
		w.fail(KindReadObjectData, req.Namespace, req.Object, err)
		return
	}
	metrics.ClusterTasks.WithLabelValues(KindReadObjectData, "ok").Inc()
	replyTo(req.Reply, DataResult{
		Namespace: req.Namespace,
		Object:    req.Object,
		Value:     val,
		Tags:      tags,
	})
}

// doHash resolves an object's sha1sum, computing and persisting it on
// the cluster when absent, and feeds the lookup cache.
func (w *worker) doHash(ctx context.Context, req HashRequest) {
	w.conn.SetNamespace(req.Namespace)
	defer w.conn.SetNamespace("")

	tags, err := cluster.ObjectTags(ctx, w.conn, req.Key)
	if err != nil {
		w.fail(KindReadObjectHash, req.Namespace, req.Key, err)
		return
	}
	sum := tags.Sha1Sum()
	w.a.hashCache.Add(req.Namespace+"\t"+req.Key, sum)
	metrics.ClusterTasks.WithLabelValues(KindReadObjectHash, "ok").Inc()
	replyTo(req.Reply, types.ObjectRecord{
		Namespace: req.Namespace, Key: req.Key, Sha1Sum: sum,
	})
}

// doTags fetches only an object's extended attributes.
func (w *worker) doTags(ctx context.Context, req TagsRequest) {
	w.conn.SetNamespace(req.Namespace)
	defer w.conn.SetNamespace("")

	tags, err := cluster.ObjectTags(ctx, w.conn, req.Object)
	if err != nil {
		w.fail(KindReadObjectTags, req.Namespace, req.Object, err)
		return
	}
	metrics.ClusterTasks.WithLabelValues(KindReadObjectTags, "ok").Inc()
	replyTo(req.Reply, TagsResult{
		Namespace: req.Namespace,
		Object:    req.Object,
		Tags:      tags,
	})
}

// doScan lists one namespace for a full index read. A failed listing
// reports an empty result so the orchestrator is never left waiting for
// a namespace that cannot be read.
func (w *worker) doScan(ctx context.Context, task nsScanTask) {
	listing, err := cluster.NamespaceIndex(ctx, w.conn, task.Namespace)
	if err != nil {
		w.fail(KindReadNamespaceIndex, task.Namespace, "", err)
		listing = types.NamespaceListing{
			Namespace: task.Namespace,
			Objects:   map[string]types.ObjectAttrs{},
		}
	} else {
		metrics.ClusterTasks.WithLabelValues(KindReadNamespaceIndex, "ok").Inc()
	}
	select {
	case w.a.scanResults <- listing:
	case <-ctx.Done():
	}
}

func (w *worker) fail(kind, namespace, object string, err error) {
	metrics.ClusterTasks.WithLabelValues(kind, "error").Inc()
	w.logger.Warn().Err(err).
		Str("task", kind).
		Str("namespace", namespace).
		Str("object", object).
		Msg("cluster task failed")
}
