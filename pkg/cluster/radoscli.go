package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// RadosCLI connects to the cluster through the rados command line tool.
// Every Conn it hands out is an independent invocation context; the pool,
// user and keyring are fixed at construction.
type RadosCLI struct {
	ConfigPath string
	Pool       string
	User       string
}

// NewRadosCLI returns a Connector backed by the rados binary.
func NewRadosCLI(configPath, pool, user string) *RadosCLI {
	return &RadosCLI{ConfigPath: configPath, Pool: pool, User: user}
}

// Connect verifies the cluster is reachable and returns a Conn. A failed
// probe is a fatal startup condition for the caller.
func (r *RadosCLI) Connect(ctx context.Context) (Conn, error) {
	c := &radosConn{cli: r}
	// probe: listing the pool fails fast on bad config or pool name
	if _, err := c.ListObjects(ctx); err != nil {
		return nil, fmt.Errorf("cluster handshake: %w", err)
	}
	return c, nil
}

// radosConn is one rados-CLI backed connection.
type radosConn struct {
	cli       *RadosCLI
	namespace string
}

func (c *radosConn) SetNamespace(ns string) { c.namespace = ns }

func (c *radosConn) Close() error { return nil }

// run invokes rados with the standard pool/user/keyring arguments plus
// the current namespace.
func (c *radosConn) run(ctx context.Context, args ...string) ([]byte, error) {
	base := []string{
		"-p", c.cli.Pool,
		"--user", c.cli.User,
		"--keyring", c.cli.ConfigPath,
	}
	if c.namespace != "" {
		base = append(base, "--namespace", c.namespace)
	}
	cmd := exec.CommandContext(ctx, "rados", append(base, args...)...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rados %s: %w: %s", args[0], err, strings.TrimSpace(errb.String()))
	}
	return out.Bytes(), nil
}

func (c *radosConn) ListObjects(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "ls", "-")
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

func (c *radosConn) Stat(ctx context.Context, key string) (uint64, error) {
	out, err := c.run(ctx, "stat", key)
	if err != nil {
		return 0, err
	}
	// output ends in "... size 12345"
	fields := strings.Fields(string(out))
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] == "size" {
			return strconv.ParseUint(fields[i+1], 10, 64)
		}
	}
	return 0, fmt.Errorf("stat %q: no size in output %q", key, string(out))
}

func (c *radosConn) Read(ctx context.Context, key string, length uint64) ([]byte, error) {
	tmp, err := os.CreateTemp("", "rados-get-*")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := c.run(ctx, "get", key, path); err != nil {
		return nil, err
	}
	val, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if uint64(len(val)) > length {
		val = val[:length]
	}
	return val, nil
}

func (c *radosConn) GetXAttrs(ctx context.Context, key string) (map[string][]byte, error) {
	out, err := c.run(ctx, "listxattr", key)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string][]byte)
	for _, name := range strings.Split(string(out), "\n") {
		if name == "" {
			continue
		}
		val, err := c.run(ctx, "getxattr", key, name)
		if err != nil {
			return nil, err
		}
		// getxattr appends a trailing newline
		attrs[name] = bytes.TrimSuffix(val, []byte("\n"))
	}
	return attrs, nil
}

func (c *radosConn) SetXAttr(ctx context.Context, key, name string, value []byte) error {
	_, err := c.run(ctx, "setxattr", key, name, string(value))
	return err
}

func (c *radosConn) RmXAttr(ctx context.Context, key, name string) error {
	_, err := c.run(ctx, "rmxattr", key, name)
	return err
}

func (c *radosConn) ListNamespaces(ctx context.Context) (map[string]struct{}, error) {
	return ListNamespacesCLI(ctx, c.cli.ConfigPath, c.cli.Pool, c.cli.User)
}
