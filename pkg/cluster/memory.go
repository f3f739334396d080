package cluster

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCluster is an in-memory object pool used by the test suites and
// the embedded self-check. It implements Connector; each Connect returns
// an independent Conn view with its own current namespace. The backing
// store is shared and safe for concurrent use.
type MemoryCluster struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*memObject
}

type memObject struct {
	data   []byte
	xattrs map[string][]byte
}

// NewMemoryCluster returns an empty in-memory cluster.
func NewMemoryCluster() *MemoryCluster {
	return &MemoryCluster{namespaces: make(map[string]map[string]*memObject)}
}

// PutObject stores an object, creating the namespace if needed.
func (m *MemoryCluster) PutObject(namespace, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]*memObject)
		m.namespaces[namespace] = ns
	}
	ns[key] = &memObject{data: data, xattrs: make(map[string][]byte)}
}

// SetObjectXAttr sets an extended attribute on a stored object.
func (m *MemoryCluster) SetObjectXAttr(namespace, key, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, err := m.lookup(namespace, key)
	if err != nil {
		return err
	}
	obj.xattrs[name] = value
	return nil
}

// lookup must be called with the lock held.
func (m *MemoryCluster) lookup(namespace, key string) (*memObject, error) {
	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q not found", namespace)
	}
	obj, ok := ns[key]
	if !ok {
		return nil, fmt.Errorf("object %q/%q not found", namespace, key)
	}
	return obj, nil
}

// Connect implements Connector.
func (m *MemoryCluster) Connect(ctx context.Context) (Conn, error) {
	return &memoryConn{cluster: m}, nil
}

// memoryConn is one view onto a MemoryCluster.
type memoryConn struct {
	cluster   *MemoryCluster
	namespace string
}

func (c *memoryConn) SetNamespace(ns string) { c.namespace = ns }

func (c *memoryConn) Close() error { return nil }

func (c *memoryConn) ListObjects(ctx context.Context) ([]string, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	var keys []string
	for key := range c.cluster.namespaces[c.namespace] {
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *memoryConn) Stat(ctx context.Context, key string) (uint64, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	obj, err := c.cluster.lookup(c.namespace, key)
	if err != nil {
		return 0, err
	}
	return uint64(len(obj.data)), nil
}

func (c *memoryConn) Read(ctx context.Context, key string, length uint64) ([]byte, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	obj, err := c.cluster.lookup(c.namespace, key)
	if err != nil {
		return nil, err
	}
	if length > uint64(len(obj.data)) {
		length = uint64(len(obj.data))
	}
	out := make([]byte, length)
	copy(out, obj.data[:length])
	return out, nil
}

func (c *memoryConn) GetXAttrs(ctx context.Context, key string) (map[string][]byte, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	obj, err := c.cluster.lookup(c.namespace, key)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(obj.xattrs))
	for name, val := range obj.xattrs {
		cp := make([]byte, len(val))
		copy(cp, val)
		out[name] = cp
	}
	return out, nil
}

func (c *memoryConn) SetXAttr(ctx context.Context, key, name string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	return c.cluster.SetObjectXAttr(c.namespace, key, name, cp)
}

func (c *memoryConn) RmXAttr(ctx context.Context, key, name string) error {
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	obj, err := c.cluster.lookup(c.namespace, key)
	if err != nil {
		return err
	}
	delete(obj.xattrs, name)
	return nil
}

func (c *memoryConn) ListNamespaces(ctx context.Context) (map[string]struct{}, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	out := make(map[string]struct{}, len(c.cluster.namespaces))
	for ns := range c.cluster.namespaces {
		if ns != "" {
			out[ns] = struct{}{}
		}
	}
	return out, nil
}
