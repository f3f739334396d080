package cluster

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Sha1Attr is the extended attribute under which the content hash is
// persisted on the cluster. It is the only state the gateway writes.
const Sha1Attr = "sha1sum"

// Sha1Hex returns the lowercase hex SHA-1 of b.
func Sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// ReadObjectBytes reads the full contents of an object in the current
// namespace of c.
func ReadObjectBytes(ctx context.Context, c Conn, key string) ([]byte, error) {
	size, err := c.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	val, err := c.Read(ctx, key, size)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return val, nil
}

// ObjectTags returns the decoded extended attributes of an object,
// guaranteeing a sha1sum entry. A missing or empty sha1sum attribute is
// filled by reading the object, hashing it, and writing the digest back.
// Failure to persist the digest is logged and otherwise ignored.
func ObjectTags(ctx context.Context, c Conn, key string) (types.ObjectAttrs, error) {
	raw, err := c.GetXAttrs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("xattrs %q: %w", key, err)
	}

	tags := make(types.ObjectAttrs, len(raw)+1)
	for name, val := range raw {
		tags[name] = string(val)
	}

	if tags[Sha1Attr] == "" {
		sum, err := computeAndStoreHash(ctx, c, key)
		if err != nil {
			return nil, err
		}
		tags[Sha1Attr] = sum
	}
	return tags, nil
}

// computeAndStoreHash downloads and hashes an object, then persists the
// digest as the sha1sum attribute.
func computeAndStoreHash(ctx context.Context, c Conn, key string) (string, error) {
	cl := log.Core()
	cl.Debug().Str("object", key).Msg("calculating hash")

	val, err := ReadObjectBytes(ctx, c, key)
	if err != nil {
		return "", err
	}
	sum := Sha1Hex(val)

	if err := c.SetXAttr(ctx, key, Sha1Attr, []byte(sum)); err != nil {
		// non-fatal: the hash is recomputed on the next cold read
		cl.Warn().Err(err).Str("object", key).Msg("could not persist sha1sum")
	}
	return sum, nil
}

// NamespaceIndex lists every object of one namespace together with its
// tags. Objects whose tags cannot be read are skipped with a warning so
// a single bad object does not abort a sweep.
func NamespaceIndex(ctx context.Context, c Conn, namespace string) (types.NamespaceListing, error) {
	c.SetNamespace(namespace)
	defer c.SetNamespace("")

	keys, err := c.ListObjects(ctx)
	if err != nil {
		return types.NamespaceListing{}, fmt.Errorf("list namespace %q: %w", namespace, err)
	}

	listing := types.NamespaceListing{
		Namespace: namespace,
		Objects:   make(map[string]types.ObjectAttrs, len(keys)),
	}
	cl := log.Core()
	for _, key := range keys {
		tags, err := ObjectTags(ctx, c, key)
		if err != nil {
			cl.Warn().Err(err).
				Str("namespace", namespace).Str("object", key).
				Msg("skipping object during index read")
			continue
		}
		listing.Objects[key] = tags
	}
	return listing, nil
}
