package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
	"github.com/plattproject/cluster-gateway/pkg/index"
	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Conversation tasks a backend may open.
const (
	TaskNewFile      = "new_file_message"
	TaskIndex        = "index"
	TaskFileDownload = "file_download"
)

const (
	defaultSnapshotTimeout = 10 * time.Second
	defaultDownloadTimeout = 2 * time.Minute
	pushProbeInterval      = 100 * time.Millisecond
)

// Config wires the endpoint to its peers.
type Config struct {
	// Addr is the listen address, e.g. ":8009".
	Addr string
	// Snapshots carries index snapshot requests to the index store.
	Snapshots chan<- index.SnapshotRequest
	// Pushes carries freshly indexed records for the push stream.
	Pushes <-chan types.ObjectRecord
	// Arbiter serves object downloads.
	Arbiter *arbiter.Arbiter

	// SnapshotTimeout bounds the wait for an index snapshot; zero
	// selects the default.
	SnapshotTimeout time.Duration
	// DownloadTimeout bounds the wait for object data; zero selects the
	// default.
	DownloadTimeout time.Duration
}

// hello is the first frame of every conversation. Namespace is only
// honoured for index conversations, as the default filter.
type hello struct {
	Task      string `json:"task"`
	Namespace string `json:"namespace,omitempty"`
}

// indexRequest is one snapshot request inside an index conversation.
type indexRequest struct {
	Todo      string `json:"todo"`
	Namespace string `json:"namespace,omitempty"`
}

type newFileMessage struct {
	Todo    string             `json:"todo"`
	NewFile types.ObjectRecord `json:"new_file"`
}

type indexMessage struct {
	Todo  string     `json:"todo"`
	Index index.Tree `json:"index"`
}

type fileRequest struct {
	RequestedFile struct {
		Namespace string `json:"namespace"`
		Key       string `json:"key"`
	} `json:"requested_file"`
}

type fileMessage struct {
	Todo        string      `json:"todo"`
	FileRequest fileContent `json:"file_request"`
}

type fileContent struct {
	Namespace string            `json:"namespace"`
	Object    string            `json:"object"`
	Contents  string            `json:"contents"`
	Tags      map[string]string `json:"tags"`
}

// Endpoint is the analytics-facing side of the gateway. Each accepted
// connection carries exactly one conversation, selected by the first
// frame's task field.
type Endpoint struct {
	cfg      Config
	listener net.Listener
	broker   *broker
	logger   zerolog.Logger
}

// New creates the endpoint and binds its listener.
func New(cfg Config) (*Endpoint, error) {
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("binding backend endpoint: %w", err)
	}
	logger := log.Backend()
	logger.Info().Str("addr", listener.Addr().String()).Msg("backend endpoint listening")
	return &Endpoint{
		cfg:      cfg,
		listener: listener,
		broker:   newBroker(),
		logger:   logger,
	}, nil
}

// Addr returns the bound listen address.
func (e *Endpoint) Addr() net.Addr {
	return e.listener.Addr()
}

// Run accepts conversations until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	go e.broker.run(ctx, e.cfg.Pushes)
	go func() {
		<-ctx.Done()
		e.listener.Close()
	}()

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting backend connection: %w", err)
		}
		go e.serve(ctx, conn)
	}
}

// serve runs one conversation to completion.
func (e *Endpoint) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := e.logger.With().Str("conn", uuid.New().String()).Logger()
	f := &framer{conn: conn}

	payload, err := f.recv()
	if err != nil {
		if err != io.EOF {
			logger.Warn().Err(err).Msg("conversation handshake failed")
		}
		return
	}
	var h hello
	if err := json.Unmarshal(payload, &h); err != nil {
		logger.Warn().Err(err).Msg("malformed conversation handshake")
		return
	}

	metrics.BackendConversations.WithLabelValues(h.Task).Inc()
	logger.Debug().Str("task", h.Task).Msg("conversation opened")

	switch h.Task {
	case TaskNewFile:
		err = e.pushConversation(ctx, f)
	case TaskIndex:
		err = e.indexConversation(ctx, f, h.Namespace)
	case TaskFileDownload:
		err = e.fileConversation(ctx, f, logger)
	default:
		logger.Warn().Str("task", h.Task).Msg("unknown conversation task")
		return
	}
	if err != nil && err != io.EOF && ctx.Err() == nil {
		logger.Warn().Err(err).Str("task", h.Task).Msg("conversation ended with error")
	} else {
		logger.Debug().Str("task", h.Task).Msg("conversation closed")
	}
}

// pushConversation streams every freshly indexed object to the peer
// until it disconnects. The peer never sends after the handshake, so a
// readable socket means it is gone.
func (e *Endpoint) pushConversation(ctx context.Context, f *framer) error {
	sub := e.broker.subscribe()
	defer e.broker.unsubscribe(sub)

	probe := time.NewTicker(pushProbeInterval)
	defer probe.Stop()

	for {
		select {
		case rec := <-sub:
			payload, err := json.Marshal(newFileMessage{Todo: "new_file", NewFile: rec})
			if err != nil {
				return fmt.Errorf("encoding push: %w", err)
			}
			if err := f.send(payload); err != nil {
				return err
			}
		case <-probe.C:
			if f.peerClosed(time.Millisecond) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// indexConversation answers snapshot requests. Nothing is sent until
// the peer asks: every snapshot is solicited by a {"todo":"index"}
// frame. A namespace in the request narrows that snapshot; otherwise
// the handshake's namespace, if any, applies.
func (e *Endpoint) indexConversation(ctx context.Context, f *framer, defaultNS string) error {
	for {
		payload, err := f.recv()
		if err != nil {
			return err
		}
		var req indexRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("malformed index request: %w", err)
		}
		if req.Todo != "index" {
			return fmt.Errorf("unexpected request %q in index conversation", req.Todo)
		}

		namespace := req.Namespace
		if namespace == "" {
			namespace = defaultNS
		}
		if err := e.sendSnapshot(ctx, f, namespace); err != nil {
			return err
		}
	}
}

func (e *Endpoint) sendSnapshot(ctx context.Context, f *framer, namespace string) error {
	reply := make(chan index.Tree, 1)
	select {
	case e.cfg.Snapshots <- index.SnapshotRequest{Namespace: namespace, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	timer := time.NewTimer(e.cfg.SnapshotTimeout)
	defer timer.Stop()

	select {
	case tree := <-reply:
		payload, err := json.Marshal(indexMessage{Todo: "index", Index: tree})
		if err != nil {
			return fmt.Errorf("encoding index snapshot: %w", err)
		}
		return f.send(payload)
	case <-timer.C:
		return fmt.Errorf("no index snapshot within %s", e.cfg.SnapshotTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fileConversation serves object downloads. Each request frame names
// one object; the response carries its contents base64-encoded together
// with its tags. Malformed requests are dropped and the conversation
// continues; a failed cluster read answers with an empty payload so the
// peer is never left waiting.
func (e *Endpoint) fileConversation(ctx context.Context, f *framer, logger zerolog.Logger) error {
	for {
		payload, err := f.recv()
		if err != nil {
			return err
		}
		var req fileRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Debug().Err(err).Msg("dropping malformed file request")
			continue
		}
		target := req.RequestedFile
		if target.Namespace == "" || target.Key == "" {
			logger.Debug().Msg("dropping file request without namespace or key")
			continue
		}
		logger.Debug().Str("namespace", target.Namespace).Str("key", target.Key).Msg("file requested")

		result, err := e.fetchObject(ctx, target.Namespace, target.Key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).
				Str("namespace", target.Namespace).Str("key", target.Key).
				Msg("file request failed, answering empty")
			result = arbiter.DataResult{Namespace: target.Namespace, Object: target.Key}
		}
		if result.Tags == nil {
			result.Tags = types.ObjectAttrs{}
		}

		msg := fileMessage{
			Todo: "file_request",
			FileRequest: fileContent{
				Namespace: result.Namespace,
				Object:    result.Object,
				Contents:  base64.StdEncoding.EncodeToString(result.Value),
				Tags:      result.Tags,
			},
		}
		out, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding file response: %w", err)
		}
		if err := f.send(out); err != nil {
			return err
		}
	}
}

func (e *Endpoint) fetchObject(ctx context.Context, namespace, key string) (arbiter.DataResult, error) {
	reply := make(chan arbiter.DataResult, 1)
	e.cfg.Arbiter.ReadObjectData(arbiter.DataRequest{
		Namespace: namespace,
		Object:    key,
		Reply:     reply,
	})

	timer := time.NewTimer(e.cfg.DownloadTimeout)
	defer timer.Stop()

	select {
	case result := <-reply:
		return result, nil
	case <-timer.C:
		return arbiter.DataResult{}, fmt.Errorf("no object data within %s", e.cfg.DownloadTimeout)
	case <-ctx.Done():
		return arbiter.DataResult{}, ctx.Err()
	}
}
