package cluster

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ListNamespacesCLI enumerates the namespaces of a pool with the rados
// command line. rados writes one line per object into a listing file;
// lines with two tab-separated fields carry a namespace in the first
// field, lines with a single field belong to the default namespace.
func ListNamespacesCLI(ctx context.Context, configPath, pool, user string) (map[string]struct{}, error) {
	tmp, err := os.CreateTemp("", "rados-ls-*.txt")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, "rados",
		"-p", pool,
		"ls", path,
		"--user", user,
		"--keyring", configPath,
		"--all",
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rados ls --all: %w", err)
	}

	return ParseNamespaceListing(path)
}

// ParseNamespaceListing reads a rados --all listing file and returns the
// distinct non-empty namespaces it mentions.
func ParseNamespaceListing(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	namespaces := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		if len(parts) == 2 && parts[0] != "" {
			namespaces[parts[0]] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return namespaces, nil
}
