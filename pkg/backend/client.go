package backend

import (
	"encoding/json"
	"fmt"
	"net"
)

// Client speaks the peer side of the wire protocol. The gateway's
// self-test uses it to exercise the endpoint end to end; it doubles as
// a reference implementation for backend authors.
type Client struct {
	f *framer
}

// Dial opens a conversation connection to addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing backend endpoint: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{f: &framer{conn: conn}}
}

// Send marshals v and transfers it as one frame.
func (c *Client) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return c.f.send(payload)
}

// Recv receives one frame and unmarshals it into v.
func (c *Client) Recv(v any) error {
	payload, err := c.f.recv()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	return nil
}

// Open sends the conversation handshake for task.
func (c *Client) Open(task string) error {
	return c.Send(hello{Task: task})
}

// OpenNamespace sends an index handshake restricted to one namespace.
func (c *Client) OpenNamespace(task, namespace string) error {
	return c.Send(hello{Task: task, Namespace: namespace})
}

// RequestIndex asks for one index snapshot inside an open index
// conversation. A non-empty namespace narrows the snapshot.
func (c *Client) RequestIndex(namespace string) error {
	return c.Send(indexRequest{Todo: "index", Namespace: namespace})
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.f.conn.Close()
}
