// Package mock provides a scripted test double for [protocol.Conn].
//
// The client side of a conversation is scripted up front through Replies.
// Everything the server sends is recorded and can be inspected either message
// by message or as one concatenated transcript:
//
//	conn := &mock.Conn{Replies: []string{"caat", "n"}}
//	// run the session against conn …
//	if !strings.Contains(conn.Output(), "OUTPUT: cat") { … }
package mock

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/MrWong99/spellbook/internal/protocol"
)

var _ protocol.Conn = (*Conn)(nil)

// Conn is a configurable test double for [protocol.Conn]. It is safe for
// concurrent use.
type Conn struct {
	mu sync.Mutex

	// Replies are returned by ReceiveLine in order. When exhausted,
	// ReceiveLine returns ReceiveErr, or io.EOF when that is nil.
	Replies []string

	// ReceiveErr is returned once Replies is exhausted.
	ReceiveErr error

	// SendErr is returned by every Send when non-nil. The text is still
	// recorded.
	SendErr error

	// FailSendAfter, when > 0, makes Send fail with SendErr only after
	// this many successful sends.
	FailSendAfter int

	// Remote is returned by RemoteAddr. Default: "mock".
	Remote string

	sent     []string
	received int
	closed   bool
}

// Send records text and returns the configured error.
func (c *Conn) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	if c.SendErr != nil && len(c.sent) > c.FailSendAfter {
		return c.SendErr
	}
	return nil
}

// ReceiveLine returns the next scripted reply.
func (c *Conn) ReceiveLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.received < len(c.Replies) {
		r := c.Replies[c.received]
		c.received++
		return r, nil
	}
	if c.ReceiveErr != nil {
		return "", c.ReceiveErr
	}
	return "", io.EOF
}

// Close marks the conn closed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// RemoteAddr returns Remote, or "mock".
func (c *Conn) RemoteAddr() string {
	if c.Remote == "" {
		return "mock"
	}
	return c.Remote
}

// Sent returns a copy of every recorded Send in order.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// Output returns all sent text concatenated.
func (c *Conn) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.sent, "")
}

// Received returns how many replies have been consumed.
func (c *Conn) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
