package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClusterRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCluster()
	mem.PutObject("ns", "obj", []byte("payload"))

	conn, err := mem.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetNamespace("ns")

	size, err := conn.Stat(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), size)

	data, err := conn.Read(ctx, "obj", size)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = conn.Stat(ctx, "missing")
	assert.Error(t, err)
}

func TestMemoryClusterConnectionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCluster()
	mem.PutObject("a", "obj", []byte("in a"))
	mem.PutObject("b", "obj", []byte("in b"))

	ca, err := mem.Connect(ctx)
	require.NoError(t, err)
	cb, err := mem.Connect(ctx)
	require.NoError(t, err)

	ca.SetNamespace("a")
	cb.SetNamespace("b")

	da, err := ReadObjectBytes(ctx, ca, "obj")
	require.NoError(t, err)
	db, err := ReadObjectBytes(ctx, cb, "obj")
	require.NoError(t, err)
	assert.Equal(t, "in a", string(da))
	assert.Equal(t, "in b", string(db))
}

func TestObjectTagsComputesMissingHash(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCluster()
	data := []byte("hash me")
	mem.PutObject("ns", "obj", data)

	conn, err := mem.Connect(ctx)
	require.NoError(t, err)
	conn.SetNamespace("ns")

	tags, err := ObjectTags(ctx, conn, "obj")
	require.NoError(t, err)
	assert.Equal(t, Sha1Hex(data), tags.Sha1Sum())

	// the computed hash is persisted on the cluster
	raw, err := conn.GetXAttrs(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, Sha1Hex(data), string(raw[Sha1Attr]))
}

func TestObjectTagsKeepsExistingHash(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCluster()
	mem.PutObject("ns", "obj", []byte("contents"))
	require.NoError(t, mem.SetObjectXAttr("ns", "obj", Sha1Attr, []byte("preset")))

	conn, err := mem.Connect(ctx)
	require.NoError(t, err)
	conn.SetNamespace("ns")

	tags, err := ObjectTags(ctx, conn, "obj")
	require.NoError(t, err)
	assert.Equal(t, "preset", tags.Sha1Sum())
}

func TestNamespaceIndex(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCluster()
	mem.PutObject("ns", "one", []byte("1"))
	mem.PutObject("ns", "two", []byte("22"))
	mem.PutObject("other", "three", []byte("333"))

	conn, err := mem.Connect(ctx)
	require.NoError(t, err)

	listing, err := NamespaceIndex(ctx, conn, "ns")
	require.NoError(t, err)
	assert.Equal(t, "ns", listing.Namespace)
	require.Len(t, listing.Objects, 2)
	assert.Equal(t, Sha1Hex([]byte("1")), listing.Objects["one"].Sha1Sum())
	assert.Equal(t, Sha1Hex([]byte("22")), listing.Objects["two"].Sha1Sum())
}

func TestParseNamespaceListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listing.txt")
	content := "eo_mesh\tuniverse.fo.mesh.nodes@000000000000001\n" +
		"eo_mesh\tuniverse.fo.mesh.nodes@000000000000002\n" +
		"object-in-default-namespace\n" +
		"sim_run_2\tuniverse.fo.mesh.boundingbox@000000000000001\n" +
		"\tweird-leading-tab\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	namespaces, err := ParseNamespaceListing(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"eo_mesh":   {},
		"sim_run_2": {},
	}, namespaces)
}

func TestParseNamespaceListingMissingFile(t *testing.T) {
	_, err := ParseNamespaceListing(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
