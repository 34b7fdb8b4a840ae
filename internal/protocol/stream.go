package protocol

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// minReadBuffer is the smallest per-line read bound a stream accepts.
const minReadBuffer = 64

// StreamOption configures a [StreamConn].
type StreamOption func(*StreamConn)

// WithIdleTimeout bounds how long ReceiveLine waits for a line. Zero, the
// default, waits forever. Only effective on transports with read deadlines.
func WithIdleTimeout(d time.Duration) StreamOption {
	return func(c *StreamConn) { c.idle = d }
}

// deadliner is the subset of net.Conn used for idle timeouts.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// StreamConn adapts a byte stream (typically a TCP connection) to [Conn].
// Lines are terminated by '\n'; a trailing '\r' is stripped.
type StreamConn struct {
	rwc    io.ReadWriteCloser
	sc     *bufio.Scanner
	remote string
	idle   time.Duration
}

// NewStreamConn wraps rwc. maxLine bounds the bytes buffered for a single
// line; longer lines make ReceiveLine return [ErrLineTooLong].
func NewStreamConn(rwc io.ReadWriteCloser, maxLine int, opts ...StreamOption) *StreamConn {
	if maxLine < minReadBuffer {
		maxLine = minReadBuffer
	}
	sc := bufio.NewScanner(rwc)
	sc.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	sc.Split(bufio.ScanLines)

	c := &StreamConn{rwc: rwc, sc: sc, remote: "unknown"}
	if nc, ok := rwc.(net.Conn); ok && nc.RemoteAddr() != nil {
		c.remote = nc.RemoteAddr().String()
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send implements [Conn.Send].
func (c *StreamConn) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(c.rwc, text)
	return err
}

// ReceiveLine implements [Conn.ReceiveLine].
func (c *StreamConn) ReceiveLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d, ok := c.rwc.(deadliner); ok && c.idle > 0 {
		if err := d.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return "", err
		}
	}
	if c.sc.Scan() {
		return c.sc.Text(), nil
	}
	err := c.sc.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", ErrLineTooLong
	default:
		return "", err
	}
}

// Close implements [Conn.Close].
func (c *StreamConn) Close() error { return c.rwc.Close() }

// RemoteAddr implements [Conn.RemoteAddr].
func (c *StreamConn) RemoteAddr() string { return c.remote }
