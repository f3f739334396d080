package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plattproject/cluster-gateway/pkg/types"
)

func testStore() *Store {
	return New(Config{})
}

func TestAddBuildsTreePath(t *testing.T) {
	s := testStore()
	s.Add(types.ObjectRecord{
		Namespace: "eo_mesh",
		Key:       "universe.fo.eo.nodal.temperature.eo@000000000000123",
		Sha1Sum:   "abc",
	})

	require.True(t, s.Present("eo_mesh", "universe.fo.eo.nodal.temperature.eo@000000000000123"))

	tree := s.Snapshot("")
	leaf := tree.leafAt([]string{"eo_mesh", "000000000000123", "eo", "nodal", "temperature", "eo"})
	require.NotNil(t, leaf)
	assert.Equal(t, "universe.fo.eo.nodal.temperature.eo@000000000000123", leaf.ObjectKey)
	assert.Equal(t, "abc", leaf.Sha1Sum)
}

func TestAddLeadingFieldTokenOmitsSimtypeLevel(t *testing.T) {
	s := testStore()
	s.Add(types.ObjectRecord{
		Namespace: "eo_mesh",
		Key:       "universe.fo.nodal.z1.eo@000000000000003",
		Sha1Sum:   "abc",
	})

	tree := s.Snapshot("")
	leaf := tree.leafAt([]string{"eo_mesh", "000000000000003", "nodal", "z1", "eo"})
	require.NotNil(t, leaf)
	assert.Equal(t, "universe.fo.nodal.z1.eo@000000000000003", leaf.ObjectKey)
}

func TestAddIsIdempotent(t *testing.T) {
	s := testStore()
	rec := types.ObjectRecord{
		Namespace: "ns",
		Key:       "universe.fo.mesh.nodes@000000000000001",
		Sha1Sum:   "abc",
	}
	s.Add(rec)
	s.Add(rec)
	s.Add(rec)

	tree := s.Snapshot("ns")
	leaf := tree.leafAt([]string{"000000000000001", "mesh", "nodes"})
	require.NotNil(t, leaf)
	assert.Equal(t, "abc", leaf.Sha1Sum)
}

func TestAddNeverDowngradesHash(t *testing.T) {
	s := testStore()
	key := "universe.fo.mesh.nodes@000000000000001"

	s.Add(types.ObjectRecord{Namespace: "ns", Key: key, Sha1Sum: "abc"})
	s.Add(types.ObjectRecord{Namespace: "ns", Key: key, Sha1Sum: ""})

	leaf := s.Snapshot("ns").leafAt([]string{"000000000000001", "mesh", "nodes"})
	require.NotNil(t, leaf)
	assert.Equal(t, "abc", leaf.Sha1Sum)
}

func TestAddUpgradesEmptyHash(t *testing.T) {
	s := testStore()
	key := "universe.fo.mesh.nodes@000000000000001"

	s.Add(types.ObjectRecord{Namespace: "ns", Key: key})
	leaf := s.Snapshot("ns").leafAt([]string{"000000000000001", "mesh", "nodes"})
	require.NotNil(t, leaf)
	assert.Empty(t, leaf.Sha1Sum)

	s.Add(types.ObjectRecord{Namespace: "ns", Key: key, Sha1Sum: "abc"})
	leaf = s.Snapshot("ns").leafAt([]string{"000000000000001", "mesh", "nodes"})
	require.NotNil(t, leaf)
	assert.Equal(t, "abc", leaf.Sha1Sum)
}

func TestAddRejectsUnparseableKeys(t *testing.T) {
	s := testStore()
	s.Add(types.ObjectRecord{Namespace: "ns", Key: "not a valid key", Sha1Sum: "abc"})

	assert.False(t, s.Present("ns", "not a valid key"))
	assert.Empty(t, s.Snapshot(""))
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := testStore()
	key := "universe.fo.mesh.nodes@000000000000001"
	s.Add(types.ObjectRecord{Namespace: "ns", Key: key, Sha1Sum: "abc"})

	snap := s.Snapshot("")
	leaf := snap.leafAt([]string{"ns", "000000000000001", "mesh", "nodes"})
	require.NotNil(t, leaf)
	leaf.Sha1Sum = "tampered"

	fresh := s.Snapshot("").leafAt([]string{"ns", "000000000000001", "mesh", "nodes"})
	require.NotNil(t, fresh)
	assert.Equal(t, "abc", fresh.Sha1Sum)
}

func TestSnapshotNamespaceFilter(t *testing.T) {
	s := testStore()
	s.Add(types.ObjectRecord{Namespace: "a", Key: "universe.fo.mesh.nodes@000000000000001"})
	s.Add(types.ObjectRecord{Namespace: "b", Key: "universe.fo.mesh.nodes@000000000000002"})

	snap := s.Snapshot("a")
	assert.NotNil(t, snap.leafAt([]string{"000000000000001", "mesh", "nodes"}))
	assert.Nil(t, snap.leafAt([]string{"000000000000002", "mesh", "nodes"}))

	assert.Empty(t, s.Snapshot("unknown"))
}

func TestRunResolvesMissingHashes(t *testing.T) {
	ingestCh := make(chan types.ObjectRecord)
	pushCh := make(chan types.ObjectRecord, 1)
	requests := make(chan SnapshotRequest)
	sweep := make(chan struct{}, 1)

	s := New(Config{
		FromIngest:    ingestCh,
		FromRefresher: make(chan types.ObjectRecord),
		Requests:      requests,
		PushOut:       pushCh,
		RequestHash: func(rec types.ObjectRecord, reply chan<- types.ObjectRecord) {
			rec.Sha1Sum = "resolved"
			reply <- rec
		},
		SweepTrigger: sweep,
		WarmUp:       time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ingestCh <- types.ObjectRecord{
		Namespace: "ns",
		Key:       "universe.fo.mesh.nodes@000000000000001",
	}

	select {
	case pushed := <-pushCh:
		assert.Equal(t, "resolved", pushed.Sha1Sum)
	case <-time.After(2 * time.Second):
		t.Fatal("no push for resolved record")
	}

	reply := make(chan Tree, 1)
	requests <- SnapshotRequest{Namespace: "ns", Reply: reply}
	select {
	case tree := <-reply:
		leaf := tree.leafAt([]string{"000000000000001", "mesh", "nodes"})
		require.NotNil(t, leaf)
		assert.Equal(t, "resolved", leaf.Sha1Sum)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot reply")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("store did not stop")
	}
}

func TestRunTriggersSweepAfterWarmUp(t *testing.T) {
	sweep := make(chan struct{}, 1)
	s := New(Config{
		FromIngest:    make(chan types.ObjectRecord),
		FromRefresher: make(chan types.ObjectRecord),
		Requests:      make(chan SnapshotRequest),
		PushOut:       make(chan types.ObjectRecord, 1),
		SweepTrigger:  sweep,
		WarmUp:        10 * time.Millisecond,
		SweepPeriod:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-sweep:
	case <-time.After(2 * time.Second):
		t.Fatal("no sweep trigger after warm-up")
	}
}
