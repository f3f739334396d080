package arbiter

import (
	"context"
	"time"

	"github.com/plattproject/cluster-gateway/pkg/types"
)

// doIndex orchestrates a full pool scan on the single index worker: it
// enumerates the namespaces, enqueues one scan task per namespace, and
// collects the listings until every expected namespace has reported.
// Stale index requests that queued up behind the running scan are
// answered with the same fresh result instead of triggering an immediate
// re-scan.
func (w *worker) doIndex(ctx context.Context, req IndexRequest) {
	started := time.Now()

	namespaces, err := w.conn.ListNamespaces(ctx)
	if err != nil {
		w.fail(KindReadIndex, "", "", err)
		return
	}
	w.logger.Debug().Int("namespaces", len(namespaces)).Msg("starting full index scan")

	expected := make(map[string]struct{}, len(namespaces))
	pending := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		expected[ns] = struct{}{}
		pending = append(pending, ns)
	}

	listings := make([]types.NamespaceListing, 0, len(expected))
	collect := func(listing types.NamespaceListing) {
		if _, ok := expected[listing.Namespace]; !ok {
			// leftover from an earlier aborted scan
			return
		}
		delete(expected, listing.Namespace)
		listings = append(listings, listing)
	}

	// Enqueue and collect concurrently: with more namespaces than queue
	// capacity, blocking on a full scan queue while results pile up
	// unread would wedge the whole scan.
	for len(pending) > 0 {
		ns := pending[len(pending)-1]
		select {
		case w.a.scanQ <- nsScanTask{Namespace: ns}:
			pending = pending[:len(pending)-1]
		case listing := <-w.a.scanResults:
			collect(listing)
		case <-ctx.Done():
			return
		}
	}

	timeout := time.NewTimer(w.a.scanTimeout)
	defer timeout.Stop()

	for len(expected) > 0 {
		select {
		case listing := <-w.a.scanResults:
			collect(listing)
			if !timeout.Stop() {
				<-timeout.C
			}
			timeout.Reset(w.a.scanTimeout)

		case <-timeout.C:
			w.logger.Warn().
				Int("missing", len(expected)).
				Msg("index scan incomplete, returning partial result")
			expected = nil

		case <-ctx.Done():
			return
		}
	}

	result := IndexResult{Listings: listings}
	replyTo(req.Reply, result)
	w.logger.Info().
		Int("namespaces", len(listings)).
		Dur("elapsed", time.Since(started)).
		Msg("full index scan complete")

	// Serve requests that piled up during the scan from this result.
	for {
		select {
		case stale := <-w.a.indexQ:
			replyTo(stale.Reply, result)
		default:
			return
		}
	}
}
