package connection

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/frame"
	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
)

// pipeConn is an in-memory transport.Conn for driving a Connection
// directly from a test without a real socket.
type pipeConn struct {
	mu     sync.Mutex
	toPeer chan []byte
	closed bool
}

func newPipeConn() *pipeConn {
	return &pipeConn{toPeer: make(chan []byte, 64)}
}

func (p *pipeConn) ReadChunk() ([]byte, error) {
	data, ok := <-p.toPeer
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func (p *pipeConn) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipeConn: closed")
	}
	return nil
}

func (p *pipeConn) SetReadDeadline(time.Time) error { return nil }

func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.toPeer)
	}
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "test-peer" }

func (p *pipeConn) feed(data []byte) {
	p.toPeer <- data
}

// capturingConn records every server->client write instead of discarding it.
type capturingConn struct {
	*pipeConn
	mu  sync.Mutex
	out [][]byte
}

func newCapturingConn() *capturingConn {
	return &capturingConn{pipeConn: newPipeConn()}
}

func (c *capturingConn) Write(data []byte) error {
	c.mu.Lock()
	cp := append([]byte{}, data...)
	c.out = append(c.out, cp)
	c.mu.Unlock()
	return nil
}

func (c *capturingConn) messages(t *testing.T) []*frame.ServerMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*frame.ServerMessage
	for _, raw := range c.out {
		msg, _, err := frame.DecodeServer(raw)
		if err != nil {
			t.Fatalf("DecodeServer: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func newPlayerWire(name, language string) []byte {
	buf := []byte{byte(frame.TypeNewPlayer), frame.ProtocolVersion}
	buf = append(buf, []byte(language)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(name)...)
	buf = append(buf, 0)
	return buf
}

func waitForMessageType(t *testing.T, conn *capturingConn, want frame.ServerType, timeout time.Duration) *frame.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range conn.messages(t) {
			if m.Type == want {
				return m
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for server message type %v", want)
	return nil
}

func TestConnectionHandshakeAssignsSeatZero(t *testing.T) {
	reg := registry.New(func() *rand.Rand { return rand.New(rand.NewSource(1)) })
	conn := newCapturingConn()
	c := New(conn, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	conn.feed(newPlayerWire("alice", "en"))

	ack := waitForMessageType(t, conn, frame.TypePlayerID, 2*time.Second)
	if ack.YourNumber != 0 {
		t.Fatalf("got seat %d, want 0", ack.YourNumber)
	}

	waitForMessageType(t, conn, frame.TypePlayerName, 2*time.Second)
	waitForMessageType(t, conn, frame.TypePlayerFlags, 2*time.Second)
}

func TestConnectionTurnProducesTileEvent(t *testing.T) {
	reg := registry.New(func() *rand.Rand { return rand.New(rand.NewSource(2)) })
	conn := newCapturingConn()
	c := New(conn, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	conn.feed(newPlayerWire("alice", "en"))
	waitForMessageType(t, conn, frame.TypePlayerID, 2*time.Second)

	conn.feed([]byte{byte(frame.TypeTurn)})
	waitForMessageType(t, conn, frame.TypeTile, 2*time.Second)
}

func TestEnqueueBlocksWhenBufferFullAndDoesNotCloseConnection(t *testing.T) {
	reg := registry.New(func() *rand.Rand { return rand.New(rand.NewSource(4)) })
	conn := newCapturingConn()
	c := New(conn, reg, nil)

	for i := 0; i < sendBufferCap; i++ {
		c.out <- []byte{byte(i)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.enqueue(ctx, []byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned immediately though the output buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-c.closed:
		t.Fatal("enqueue must not close the connection while paused on a full buffer")
	default:
	}

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not return after ctx cancellation")
	}
}

func TestConnectionRejectsNonHandshakeMessageFirst(t *testing.T) {
	reg := registry.New(func() *rand.Rand { return rand.New(rand.NewSource(3)) })
	conn := newCapturingConn()
	c := New(conn, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	conn.feed([]byte{byte(frame.TypeTurn)})
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the connection closed")
	}
}
