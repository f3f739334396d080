package arbiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plattproject/cluster-gateway/pkg/cluster"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

var testLayout = Layout{Data: 1, Hashes: 1, Tags: 1, NamespaceIndex: 1, Index: 1}

func startArbiter(t *testing.T, mem *cluster.MemoryCluster) *Arbiter {
	t.Helper()
	a, err := New(Config{
		Connector:   mem,
		Layout:      testLayout,
		ScanTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("arbiter did not stop")
		}
	})
	return a
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{"default", DefaultLayout, false},
		{"minimal", Layout{Data: 1, NamespaceIndex: 1, Index: 1}, false},
		{"no index worker", Layout{Data: 2, NamespaceIndex: 2}, true},
		{"two index workers", Layout{Data: 1, NamespaceIndex: 1, Index: 2}, true},
		{"no data worker", Layout{NamespaceIndex: 1, Index: 1}, true},
		{"no namespace worker", Layout{Data: 1, Index: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPatternSlots(t *testing.T) {
	// every pattern except index falls back to other queues
	assert.Equal(t, []queueKind{queueData, queueHashes, queueTags}, patternData.slots())
	assert.Equal(t, []queueKind{queueHashes, queueTags, queueData}, patternHashes.slots())
	assert.Equal(t, []queueKind{queueTags, queueHashes, queueData}, patternTags.slots())
	assert.Equal(t, []queueKind{queueScan, queueHashes, queueTags}, patternNamespaceIndex.slots())
	assert.Equal(t, []queueKind{queueIndex}, patternIndex.slots())
}

func TestReadObjectData(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	data := []byte("object bytes")
	mem.PutObject("ns", "obj", data)
	a := startArbiter(t, mem)

	reply := make(chan DataResult, 1)
	a.ReadObjectData(DataRequest{Namespace: "ns", Object: "obj", Reply: reply})

	select {
	case res := <-reply:
		assert.Equal(t, "ns", res.Namespace)
		assert.Equal(t, "obj", res.Object)
		assert.Equal(t, data, res.Value)
		assert.Equal(t, cluster.Sha1Hex(data), res.Tags.Sha1Sum())
	case <-time.After(5 * time.Second):
		t.Fatal("no data result")
	}
}

func TestReadObjectDataErrorDropsTask(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	a := startArbiter(t, mem)

	reply := make(chan DataResult, 1)
	a.ReadObjectData(DataRequest{Namespace: "ns", Object: "missing", Reply: reply})

	select {
	case <-reply:
		t.Fatal("unexpected result for missing object")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestReadObjectHashFillsCache(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	data := []byte("to be hashed")
	mem.PutObject("ns", "obj", data)
	a := startArbiter(t, mem)

	reply := make(chan types.ObjectRecord, 1)
	a.ReadObjectHash(HashRequest{Namespace: "ns", Key: "obj", Reply: reply})

	want := cluster.Sha1Hex(data)
	select {
	case rec := <-reply:
		assert.Equal(t, want, rec.Sha1Sum)
	case <-time.After(5 * time.Second):
		t.Fatal("no hash result")
	}

	// the second lookup is answered from the cache
	require.Eventually(t, func() bool {
		return a.hashCache.Contains("ns\tobj")
	}, 2*time.Second, 10*time.Millisecond)

	reply2 := make(chan types.ObjectRecord, 1)
	a.ReadObjectHash(HashRequest{Namespace: "ns", Key: "obj", Reply: reply2})
	select {
	case rec := <-reply2:
		assert.Equal(t, want, rec.Sha1Sum)
	case <-time.After(5 * time.Second):
		t.Fatal("no cached hash result")
	}
}

func TestReadObjectTags(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	mem.PutObject("ns", "obj", []byte("x"))
	require.NoError(t, mem.SetObjectXAttr("ns", "obj", "origin", []byte("sim")))
	a := startArbiter(t, mem)

	reply := make(chan TagsResult, 1)
	a.ReadObjectTags(TagsRequest{Namespace: "ns", Object: "obj", Reply: reply})

	select {
	case res := <-reply:
		assert.Equal(t, "sim", res.Tags["origin"])
		assert.NotEmpty(t, res.Tags.Sha1Sum())
	case <-time.After(5 * time.Second):
		t.Fatal("no tags result")
	}
}

func TestReadIndexCoversAllNamespaces(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	mem.PutObject("alpha", "universe.fo.mesh.nodes@000000000000001", []byte("a"))
	mem.PutObject("beta", "universe.fo.mesh.nodes@000000000000001", []byte("b1"))
	mem.PutObject("beta", "universe.fo.mesh.nodes@000000000000002", []byte("b2"))
	a := startArbiter(t, mem)

	reply := make(chan IndexResult, 1)
	a.ReadIndex(IndexRequest{Reply: reply})

	select {
	case res := <-reply:
		byNS := make(map[string]int)
		for _, listing := range res.Listings {
			byNS[listing.Namespace] = len(listing.Objects)
		}
		assert.Equal(t, map[string]int{"alpha": 1, "beta": 2}, byNS)
	case <-time.After(10 * time.Second):
		t.Fatal("no index result")
	}
}

// More namespaces than scan queue and result buffer hold together; the
// index worker has to drain listings while it is still enqueueing.
func TestReadIndexManyNamespaces(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	const n = 2100
	for i := 0; i < n; i++ {
		mem.PutObject(fmt.Sprintf("ns%04d", i), "universe.fo.mesh.nodes@000000000000001", []byte("x"))
	}
	a := startArbiter(t, mem)

	reply := make(chan IndexResult, 1)
	a.ReadIndex(IndexRequest{Reply: reply})

	select {
	case res := <-reply:
		assert.Len(t, res.Listings, n)
	case <-time.After(30 * time.Second):
		t.Fatal("no index result")
	}
}

func TestReadIndexAnswersQueuedRequestsTogether(t *testing.T) {
	mem := cluster.NewMemoryCluster()
	mem.PutObject("ns", "universe.fo.mesh.nodes@000000000000001", []byte("a"))
	a := startArbiter(t, mem)

	first := make(chan IndexResult, 1)
	second := make(chan IndexResult, 1)
	a.ReadIndex(IndexRequest{Reply: first})
	a.ReadIndex(IndexRequest{Reply: second})

	for _, reply := range []chan IndexResult{first, second} {
		select {
		case res := <-reply:
			require.Len(t, res.Listings, 1)
			assert.Equal(t, "ns", res.Listings[0].Namespace)
		case <-time.After(10 * time.Second):
			t.Fatal("queued index request not answered")
		}
	}
}
