package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// MessageConn adapts a WebSocket connection to [Conn]. Every text message
// from the client is one line; a trailing "\r\n" or "\n" is stripped. Every
// Send is one text message.
type MessageConn struct {
	ws      *websocket.Conn
	remote  string
	maxLine int
	idle    time.Duration
}

// NewMessageConn wraps ws. Messages longer than maxLine bytes make
// ReceiveLine return [ErrLineTooLong]. idle bounds each read; zero waits
// forever.
func NewMessageConn(ws *websocket.Conn, remote string, maxLine int, idle time.Duration) *MessageConn {
	if maxLine < minReadBuffer {
		maxLine = minReadBuffer
	}
	// Allow oversize messages through the frame reader so they can be
	// reported as too long instead of tearing down the socket.
	ws.SetReadLimit(int64(maxLine) * 4)
	return &MessageConn{ws: ws, remote: remote, maxLine: maxLine, idle: idle}
}

// Send implements [Conn.Send].
func (c *MessageConn) Send(ctx context.Context, text string) error {
	return c.ws.Write(ctx, websocket.MessageText, []byte(text))
}

// ReceiveLine implements [Conn.ReceiveLine]. A normal close by the peer is
// reported as io.EOF.
func (c *MessageConn) ReceiveLine(ctx context.Context) (string, error) {
	if c.idle > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.idle)
		defer cancel()
	}
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		case websocket.StatusMessageTooBig:
			return "", ErrLineTooLong
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("protocol: unexpected %v message", typ)
	}
	if len(data) > c.maxLine {
		return "", ErrLineTooLong
	}
	line := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// Close implements [Conn.Close].
func (c *MessageConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// RemoteAddr implements [Conn.RemoteAddr].
func (c *MessageConn) RemoteAddr() string { return c.remote }
