package backend

import (
	"context"
	"sync"

	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// broker fans freshly indexed records out to the push conversations
// currently connected. With no subscriber the stream is drained and
// discarded; the periodic sweep rebuilds anything a backend missed.
type broker struct {
	mu   sync.Mutex
	subs map[chan types.ObjectRecord]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan types.ObjectRecord]struct{})}
}

// run distributes records from in until ctx is cancelled.
func (b *broker) run(ctx context.Context, in <-chan types.ObjectRecord) {
	for {
		select {
		case rec := <-in:
			b.publish(rec)
		case <-ctx.Done():
			return
		}
	}
}

func (b *broker) publish(rec types.ObjectRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) == 0 {
		metrics.PushesDiscarded.Inc()
		return
	}
	for sub := range b.subs {
		select {
		case sub <- rec:
		default:
			// slow subscriber; the sweep will catch it up
			metrics.PushesDiscarded.Inc()
		}
	}
}

func (b *broker) subscribe() chan types.ObjectRecord {
	sub := make(chan types.ObjectRecord, 64)
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broker) unsubscribe(sub chan types.ObjectRecord) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
