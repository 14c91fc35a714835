package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// WSTransport sends and receives JSON text frames over a WebSocket connection.
type WSTransport struct {
	endpoint string

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWSTransport(endpoint string) *WSTransport {
	return &WSTransport{endpoint: endpoint}
}

func (t *WSTransport) Name() string {
	return "websocket"
}

func (t *WSTransport) StatusTarget() string {
	return t.endpoint
}

func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("websocket", "target", t.endpoint)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}

	if t.endpoint == "" {
		logger.Warn("connect failed: endpoint is empty")

		return errors.New("websocket endpoint is empty")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	logger.Info("connecting")
	conn, _, err := dialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial websocket: %w", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

// Close performs a deliberate shutdown: it sends a normal-closure frame
// (close code 1000) before dropping the connection, so the server does
// not treat the disconnect as an error.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("websocket", "target", t.endpoint)

	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}

	t.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	t.writeMu.Unlock()

	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return nil
}

func (t *WSTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	logger := transportLogger("websocket")
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("read frame failed: not connected", "error", err)

		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		logger.Debug("read frame failed", "error", err)

		return nil, err
	}
	logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (t *WSTransport) WriteFrame(ctx context.Context, payload []byte) error {
	logger := transportLogger("websocket")
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("write frame failed: not connected", "error", err)

		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Warn("write frame failed", "len", len(payload), "error", err)

		return fmt.Errorf("write frame: %w", err)
	}
	logger.Debug("write frame", "len", len(payload))

	return nil
}

func (t *WSTransport) currentConn() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.New("transport is not connected")
	}

	return t.conn, nil
}

// IsNormalClosure reports whether err is a peer close with the
// normal-closure code (1000). Any other close code, or a plain network
// error, counts as unexpected loss and triggers reconnection.
func IsNormalClosure(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure
	}

	return false
}
