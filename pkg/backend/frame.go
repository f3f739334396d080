package backend

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/plattproject/cluster-gateway/pkg/metrics"
)

const (
	ackWord  = "ack"
	nackWord = "nack"

	// maxFrame bounds a single payload. Index snapshots and file
	// contents are the largest frames; 64 MiB is far above either.
	maxFrame = 64 << 20

	// controlTimeout bounds the short control exchanges of a frame: the
	// length prefix and the acknowledgement words. payloadTimeout bounds
	// the payload transfer itself, which may be large.
	controlTimeout = 5 * time.Second
	payloadTimeout = 30 * time.Second
)

// framer implements the backend wire protocol on one connection. Every
// transfer is a two-step interlock: an 8-byte little-endian length,
// acknowledged by the receiver, then the payload, acknowledged again.
// Acknowledgements are the literal bytes "ack" and "nack"; nothing else
// is accepted.
type framer struct {
	conn net.Conn
}

// send transfers one payload to the peer.
func (f *framer) send(payload []byte) error {
	if err := f.sendLocked(payload); err != nil {
		metrics.BackendFrames.WithLabelValues("out", "error").Inc()
		return err
	}
	metrics.BackendFrames.WithLabelValues("out", "ok").Inc()
	return nil
}

func (f *framer) sendLocked(payload []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))

	f.conn.SetDeadline(time.Now().Add(controlTimeout))
	if _, err := f.conn.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if err := f.expectAck(); err != nil {
		return fmt.Errorf("length not acknowledged: %w", err)
	}
	// empty frames consist of the interlock only
	if len(payload) > 0 {
		f.conn.SetDeadline(time.Now().Add(payloadTimeout))
		if _, err := f.conn.Write(payload); err != nil {
			return fmt.Errorf("writing frame payload: %w", err)
		}
	}
	f.conn.SetDeadline(time.Now().Add(controlTimeout))
	if err := f.expectAck(); err != nil {
		return fmt.Errorf("payload not acknowledged: %w", err)
	}
	return nil
}

// recv transfers one payload from the peer.
func (f *framer) recv() ([]byte, error) {
	payload, err := f.recvLocked()
	if err != nil {
		if err != io.EOF {
			metrics.BackendFrames.WithLabelValues("in", "error").Inc()
		}
		return nil, err
	}
	metrics.BackendFrames.WithLabelValues("in", "ok").Inc()
	return payload, nil
}

func (f *framer) recvLocked() ([]byte, error) {
	// conversations idle between requests; the wait for the next frame
	// is unbounded and only EOF or a shutdown close ends it
	var header [8]byte
	f.conn.SetDeadline(time.Time{})
	if _, err := io.ReadFull(f.conn, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	length := binary.LittleEndian.Uint64(header[:])
	if length > maxFrame {
		f.conn.SetDeadline(time.Now().Add(controlTimeout))
		f.writeWord(nackWord)
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}
	f.conn.SetDeadline(time.Now().Add(controlTimeout))
	if err := f.writeWord(ackWord); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if length > 0 {
		f.conn.SetDeadline(time.Now().Add(payloadTimeout))
		if _, err := io.ReadFull(f.conn, payload); err != nil {
			return nil, fmt.Errorf("reading frame payload: %w", err)
		}
	}
	f.conn.SetDeadline(time.Now().Add(controlTimeout))
	if err := f.writeWord(ackWord); err != nil {
		return nil, err
	}
	return payload, nil
}

// expectAck reads the peer's acknowledgement. The words are lowercase
// by definition; an uppercase variant is a protocol violation.
func (f *framer) expectAck() error {
	buf := make([]byte, 3)
	if _, err := io.ReadFull(f.conn, buf); err != nil {
		return fmt.Errorf("reading acknowledgement: %w", err)
	}
	if string(buf) == ackWord {
		return nil
	}

	one := make([]byte, 1)
	if _, err := io.ReadFull(f.conn, one); err != nil {
		return fmt.Errorf("reading acknowledgement: %w", err)
	}
	word := string(buf) + string(one)
	if word == nackWord {
		return fmt.Errorf("peer rejected frame")
	}
	return fmt.Errorf("malformed acknowledgement %q", word)
}

func (f *framer) writeWord(word string) error {
	if _, err := f.conn.Write([]byte(word)); err != nil {
		return fmt.Errorf("writing acknowledgement: %w", err)
	}
	return nil
}

// peerClosed probes the connection for EOF without blocking past the
// given window. Only valid while the peer is not expected to send; a
// stray byte received here is a protocol violation and counts as
// closed.
func (f *framer) peerClosed(window time.Duration) bool {
	f.conn.SetReadDeadline(time.Now().Add(window))
	one := make([]byte, 1)
	_, err := f.conn.Read(one)
	if err == nil {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return false
	}
	return true
}
