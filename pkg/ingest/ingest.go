package ingest

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plattproject/cluster-gateway/pkg/log"
	"github.com/plattproject/cluster-gateway/pkg/metrics"
	"github.com/plattproject/cluster-gateway/pkg/types"
)

const (
	// maxAnnouncement is the read ceiling per connection. Announcements
	// are short; anything longer is truncated and will fail validation.
	maxAnnouncement = 1024
	readDeadline    = 5 * time.Second
)

// Config wires the endpoint to its peers.
type Config struct {
	// Addr is the listen address, e.g. ":8010".
	Addr string
	// Out receives one record per accepted announcement.
	Out chan<- types.ObjectRecord
}

// Endpoint accepts one-shot announcement connections from the running
// simulation. Each connection carries a single TAB-separated line of
// namespace, object key and optional sha1sum, then closes.
type Endpoint struct {
	cfg      Config
	listener net.Listener
	logger   zerolog.Logger
}

// New creates the endpoint and binds its listener. Binding happens here
// so the caller can fail fast on an occupied port.
func New(cfg Config) (*Endpoint, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("binding simulation endpoint: %w", err)
	}
	logger := log.Simulation()
	logger.Info().Str("addr", listener.Addr().String()).Msg("simulation endpoint listening")
	return &Endpoint{cfg: cfg, listener: listener, logger: logger}, nil
}

// Addr returns the bound listen address.
func (e *Endpoint) Addr() net.Addr {
	return e.listener.Addr()
}

// Close releases the listener without serving.
func (e *Endpoint) Close() error {
	return e.listener.Close()
}

// Run accepts connections until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
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
			return fmt.Errorf("accepting simulation connection: %w", err)
		}
		go e.serve(ctx, conn)
	}
}

// serve handles one announcement connection.
func (e *Endpoint) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()
	logger := e.logger.With().Str("conn", connID).Logger()
	logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("announcement connection")

	// a single read, like the announcement is a single write on the
	// producer side; the producer need not half-close the connection
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	buf := make([]byte, maxAnnouncement)
	n, err := conn.Read(buf)
	if n == 0 {
		metrics.AnnouncementsRejected.WithLabelValues("read_error").Inc()
		logger.Debug().Err(err).Msg("announcement read failed")
		return
	}

	rec, err := parseAnnouncement(string(buf[:n]))
	if err != nil {
		metrics.AnnouncementsRejected.WithLabelValues(rejectReason(err)).Inc()
		logger.Debug().Err(err).Msg("announcement rejected")
		return
	}

	select {
	case e.cfg.Out <- rec:
		metrics.AnnouncementsTotal.Inc()
		logger.Debug().
			Str("namespace", rec.Namespace).Str("key", rec.Key).
			Bool("hashed", rec.HasHash()).
			Msg("announcement accepted")
	case <-ctx.Done():
	}
}

// parseAnnouncement validates and splits one announcement line.
// The wire format is namespace, object key and sha1sum separated by
// TAB; the hash field may be empty but must be present.
func parseAnnouncement(raw string) (types.ObjectRecord, error) {
	if raw == "" {
		return types.ObjectRecord{}, &announceError{"empty", fmt.Errorf("empty announcement")}
	}
	if !utf8.ValidString(raw) {
		return types.ObjectRecord{}, &announceError{"encoding", fmt.Errorf("announcement is not valid UTF-8")}
	}

	line := strings.TrimRight(raw, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return types.ObjectRecord{}, &announceError{"fields", fmt.Errorf("expected 3 fields, got %d", len(fields))}
	}
	if fields[0] == "" || fields[1] == "" {
		return types.ObjectRecord{}, &announceError{"fields", fmt.Errorf("namespace and key must be non-empty")}
	}

	return types.ObjectRecord{
		Namespace: fields[0],
		Key:       fields[1],
		Sha1Sum:   fields[2],
	}, nil
}

// announceError tags a validation failure with a metric label.
type announceError struct {
	reason string
	err    error
}

func (e *announceError) Error() string { return e.err.Error() }
func (e *announceError) Unwrap() error { return e.err }

func rejectReason(err error) string {
	if ae, ok := err.(*announceError); ok {
		return ae.reason
	}
	return "invalid"
}
