package transport

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestTCPConnRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sc := NewTCP(server)
	cc := NewTCP(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sc.Write([]byte("hello")); err != nil {
			t.Errorf("server write: %v", err)
		}
	}()

	chunk, err := cc.ReadChunk()
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if string(chunk) != "hello" {
		t.Fatalf("got %q, want %q", chunk, "hello")
	}
	<-done
}

func TestTCPConnReadChunkIsolatedFromReuse(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := NewTCP(client)

	go func() {
		server.Write([]byte("first"))
		server.Write([]byte("second"))
	}()

	first, err := cc.ReadChunk()
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	second, err := cc.ReadChunk()
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if string(first) != "first" || string(second) != "second" {
		t.Fatalf("got %q then %q, the first chunk's backing array was overwritten", first, second)
	}
}

func TestWebSocketConnRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		wc := NewWebSocket(conn)
		if err := wc.Write([]byte("ping")); err != nil {
			t.Errorf("server write: %v", err)
		}
		wc.Close()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	client := NewWebSocket(clientConn)
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	chunk, err := client.ReadChunk()
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if string(chunk) != "ping" {
		t.Fatalf("got %q, want %q", chunk, "ping")
	}
}

func TestWebSocketConnRejectsTextFrame(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("not binary"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	client := NewWebSocket(clientConn)
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := client.ReadChunk(); err != ErrNonBinaryFrame {
		t.Fatalf("got %v, want ErrNonBinaryFrame", err)
	}
}
