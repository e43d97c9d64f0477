package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNonBinaryFrame is returned by wsConn.ReadChunk when the peer sends
// a text frame where only binary frames are accepted (gorilla/websocket
// handles control frames itself and never returns them here).
var ErrNonBinaryFrame = errors.New("transport: only binary websocket frames are accepted")

type wsConn struct {
	conn *websocket.Conn
}

// NewWebSocket wraps an already-upgraded gorilla/websocket connection.
func NewWebSocket(conn *websocket.Conn) Conn {
	conn.SetReadLimit(MaxChunk)
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadChunk() ([]byte, error) {
	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.BinaryMessage {
		return nil, ErrNonBinaryFrame
	}
	return data, nil
}

func (w *wsConn) Write(data []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func (w *wsConn) RemoteAddr() string {
	if addr := w.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// WriteClose sends a close control frame with the given reason before
// the caller closes the underlying connection, matching gorilla's
// recommended clean-shutdown handshake.
func (w *wsConn) WriteClose(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := w.conn.WriteControl(msg, time.Now().Add(5*time.Second)); err != nil {
		return fmt.Errorf("transport: write close: %w", err)
	}
	return nil
}
