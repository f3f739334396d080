package cluster

import (
	"context"
)

// Conn is one persistent connection to the storage cluster, scoped to a
// single pool. A Conn is owned by exactly one worker; implementations do
// not need to be safe for concurrent use of a single Conn.
//
// All object operations act within the namespace set by SetNamespace.
type Conn interface {
	// SetNamespace switches the namespace for subsequent operations.
	// The empty string selects the default namespace.
	SetNamespace(ns string)

	// ListObjects returns the keys of all objects in the current
	// namespace.
	ListObjects(ctx context.Context) ([]string, error)

	// Stat returns the size of an object in bytes.
	Stat(ctx context.Context, key string) (uint64, error)

	// Read returns length bytes of the object's contents from the start.
	Read(ctx context.Context, key string, length uint64) ([]byte, error)

	// GetXAttrs returns all extended attributes of an object.
	GetXAttrs(ctx context.Context, key string) (map[string][]byte, error)

	// SetXAttr writes one extended attribute.
	SetXAttr(ctx context.Context, key, name string, value []byte) error

	// RmXAttr removes one extended attribute.
	RmXAttr(ctx context.Context, key, name string) error

	// ListNamespaces enumerates all namespaces in the pool. This may be
	// implemented out-of-band (the rados command line) and is independent
	// of the current namespace.
	ListNamespaces(ctx context.Context) (map[string]struct{}, error)

	// Close releases the connection.
	Close() error
}

// Connector opens pool connections. The cluster configuration, pool name
// and user are bound at construction time.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}
