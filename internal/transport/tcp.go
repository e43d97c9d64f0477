package transport

import (
	"net"
	"time"
)

type tcpConn struct {
	conn net.Conn
	buf  []byte
}

// NewTCP wraps a raw net.Conn (TCPConn or similar) for clients that speak
// the frame codec directly over a stream socket instead of WebSocket.
func NewTCP(conn net.Conn) Conn {
	return &tcpConn{conn: conn, buf: make([]byte, MaxChunk)}
}

func (c *tcpConn) ReadChunk() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		// Copy out: the caller may retain this slice across the next
		// ReadChunk call, which would otherwise reuse c.buf.
		out := make([]byte, n)
		copy(out, c.buf[:n])
		return out, err
	}
	return nil, err
}

func (c *tcpConn) Write(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
