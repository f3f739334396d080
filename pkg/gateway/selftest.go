package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"time"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
	"github.com/plattproject/cluster-gateway/pkg/backend"
	"github.com/plattproject/cluster-gateway/pkg/cluster"
	"github.com/plattproject/cluster-gateway/pkg/log"
)

const selfTestNamespace = "eo_mesh"

// SelfTest runs the gateway against an in-memory cluster on loopback
// ports and exercises every conversation end to end. It needs no
// cluster and no configuration; a nil return means the installation
// works.
func SelfTest(ctx context.Context) error {
	logger := log.Core()

	mem := cluster.NewMemoryCluster()
	meshKey := "universe.fo.mesh.nodes@000000000000001"
	meshData := []byte("selftest mesh nodes")
	seed(mem, meshKey, meshData)

	gw, err := New(Config{
		Connector:      mem,
		Pool:           "selftest",
		BackendAddr:    "127.0.0.1:0",
		SimulationAddr: "127.0.0.1:0",
		Settings: Settings{
			PoolLayout:      arbiter.Layout{Data: 1, Hashes: 1, Tags: 1, NamespaceIndex: 1, Index: 1},
			ScanTimeout:     Duration(5 * time.Second),
			WarmUp:          Duration(50 * time.Millisecond),
			SweepPeriod:     Duration(time.Hour),
			SnapshotTimeout: Duration(5 * time.Second),
			DownloadTimeout: Duration(5 * time.Second),
		},
	})
	if err != nil {
		return fmt.Errorf("assembling gateway: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- gw.Run(runCtx) }()

	backendAddr := gw.BackendAddr().String()
	simAddr := gw.SimulationAddr().String()

	if err := checkSweep(backendAddr, meshKey); err != nil {
		return fmt.Errorf("sweep check: %w", err)
	}
	logger.Info().Msg("selftest: sweep indexing ok")

	nodalKey := "universe.fo.eo.nodal.temperature.eo@000000000000002"
	nodalData := []byte("selftest nodal field")
	seed(mem, nodalKey, nodalData)

	push, err := backend.Dial(backendAddr)
	if err != nil {
		return fmt.Errorf("push check: %w", err)
	}
	defer push.Close()
	if err := push.Open(backend.TaskNewFile); err != nil {
		return fmt.Errorf("push check: %w", err)
	}

	// hashless announcement; the gateway resolves the hash itself
	if err := announce(simAddr, selfTestNamespace, nodalKey, ""); err != nil {
		return fmt.Errorf("announce check: %w", err)
	}

	wantHash := cluster.Sha1Hex(nodalData)
	if err := checkPush(push, nodalKey, wantHash); err != nil {
		return fmt.Errorf("push check: %w", err)
	}
	logger.Info().Msg("selftest: announcement and push ok")

	if err := checkLeafHash(backendAddr, nodalKey, wantHash); err != nil {
		return fmt.Errorf("hash resolution check: %w", err)
	}
	logger.Info().Msg("selftest: hash resolution ok")

	if err := checkDownload(backendAddr, meshKey, meshData); err != nil {
		return fmt.Errorf("download check: %w", err)
	}
	logger.Info().Msg("selftest: file download ok")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("gateway did not shut down")
	}
	return nil
}

func seed(mem *cluster.MemoryCluster, key string, data []byte) {
	mem.PutObject(selfTestNamespace, key, data)
	mem.SetObjectXAttr(selfTestNamespace, key, cluster.Sha1Attr, []byte(cluster.Sha1Hex(data)))
}

func announce(addr, namespace, key, hash string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = fmt.Fprintf(conn, "%s\t%s\t%s", namespace, key, hash)
	return err
}

type indexReply struct {
	Todo  string         `json:"todo"`
	Index map[string]any `json:"index"`
}

// checkSweep polls the index conversation until the periodic sweep has
// admitted the seeded mesh object.
func checkSweep(addr, key string) error {
	client, err := backend.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Open(backend.TaskIndex); err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := client.RequestIndex(""); err != nil {
			return err
		}
		var reply indexReply
		if err := client.Recv(&reply); err != nil {
			return err
		}
		if leaf := leafAt(reply.Index, selfTestNamespace, "000000000000001", "mesh", "nodes"); leaf != nil {
			if leaf["object_key"] != key {
				return fmt.Errorf("leaf names %v, want %s", leaf["object_key"], key)
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("object %s not indexed in time", key)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// checkLeafHash polls until the nodal object's leaf carries the hash
// resolved from the cluster.
func checkLeafHash(addr, key, wantHash string) error {
	client, err := backend.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.OpenNamespace(backend.TaskIndex, selfTestNamespace); err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := client.RequestIndex(""); err != nil {
			return err
		}
		var reply indexReply
		if err := client.Recv(&reply); err != nil {
			return err
		}
		// namespace-filtered snapshot: the namespace level is stripped
		leaf := leafAt(reply.Index, "000000000000002", "eo", "nodal", "temperature", "eo")
		if leaf != nil && leaf["sha1sum"] == wantHash {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("hash for %s not resolved in time", key)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func checkPush(client *backend.Client, wantKey, wantHash string) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var push struct {
			Todo    string `json:"todo"`
			NewFile struct {
				Namespace string `json:"namespace"`
				Key       string `json:"key"`
				Sha1Sum   string `json:"sha1sum"`
			} `json:"new_file"`
		}
		if err := client.Recv(&push); err != nil {
			return err
		}
		if push.NewFile.Key != wantKey {
			continue
		}
		if push.NewFile.Sha1Sum != wantHash {
			return fmt.Errorf("push carries hash %q, want %q", push.NewFile.Sha1Sum, wantHash)
		}
		return nil
	}
	return fmt.Errorf("no push for %s in time", wantKey)
}

func checkDownload(addr, key string, want []byte) error {
	client, err := backend.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Open(backend.TaskFileDownload); err != nil {
		return err
	}

	req := map[string]map[string]string{
		"requested_file": {"namespace": selfTestNamespace, "key": key},
	}
	if err := client.Send(req); err != nil {
		return err
	}

	var reply struct {
		Todo        string `json:"todo"`
		FileRequest struct {
			Namespace string            `json:"namespace"`
			Object    string            `json:"object"`
			Contents  string            `json:"contents"`
			Tags      map[string]string `json:"tags"`
		} `json:"file_request"`
	}
	if err := client.Recv(&reply); err != nil {
		return err
	}
	got, err := base64.StdEncoding.DecodeString(reply.FileRequest.Contents)
	if err != nil {
		return fmt.Errorf("decoding contents: %w", err)
	}
	if string(got) != string(want) {
		return fmt.Errorf("contents mismatch: got %q, want %q", got, want)
	}
	if reply.FileRequest.Tags[cluster.Sha1Attr] != cluster.Sha1Hex(want) {
		return fmt.Errorf("tags carry wrong hash")
	}
	return nil
}

// leafAt walks a decoded index tree and returns the leaf map at path.
func leafAt(tree map[string]any, path ...string) map[string]any {
	node := tree
	for _, level := range path[:len(path)-1] {
		child, ok := node[level].(map[string]any)
		if !ok {
			return nil
		}
		node = child
	}
	leaf, _ := node[path[len(path)-1]].(map[string]any)
	return leaf
}
