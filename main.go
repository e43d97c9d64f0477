package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/connection"
	"github.com/bpeel/verda-sxtelo-sub002/internal/connlimit"
	"github.com/bpeel/verda-sxtelo-sub002/internal/httpapi"
	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
	"github.com/bpeel/verda-sxtelo-sub002/internal/scheduler"
	"github.com/bpeel/verda-sxtelo-sub002/internal/transport"
)

func main() {
	if len(os.Args) > 1 && RunCLI(os.Args[1:]) {
		return
	}

	addr := flag.String("listen", ":8443", "HTTP/WebSocket listen address")
	tcpAddr := flag.String("tcp-addr", ":8442", "raw TCP listen address (empty to disable)")
	useTLS := flag.Bool("tls", false, "serve the HTTP/WebSocket listener over a self-signed TLS certificate")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "self-signed TLS certificate validity")
	maxConnections := flag.Int("max-connections", 2000, "maximum total connections across both listeners (0 = unlimited)")
	perIPLimit := flag.Int("per-ip-limit", 20, "maximum connections per IP address (0 = unlimited)")
	sweepInterval := flag.Duration("sweep-interval", scheduler.TickInterval, "how often to sweep idle conversations")
	shutdownGrace := flag.Duration("shutdown-grace", 5*time.Second, "deadline to flush queued output to clients on shutdown")
	logPath := flag.String("log", "", "file to append log output to (empty logs to stderr)")
	flag.Parse()

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("[server] opening -log file: %v", err)
		}
		log.SetOutput(f)
		slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
	}

	reg := registry.New(nil)
	limiter := connlimit.New(*maxConnections, *perIPLimit)

	// ctx governs connections and background tasks; it is only cancelled
	// once the shutdown grace period has elapsed, so in-flight players
	// still get their FINISHED/END event flushed to the wire. acceptCtx
	// governs the listeners and is cancelled immediately on signal, so
	// no new connection is admitted once shutdown begins.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	acceptCtx, cancelAccept := context.WithCancel(ctx)
	defer cancelAccept()

	shutdownDone := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancelAccept()
		reg.Shutdown()
		time.Sleep(*shutdownGrace)
		cancel()
		close(shutdownDone)
	}()

	go RunMetrics(ctx, reg, 30*time.Second)
	go scheduler.New(reg, *sweepInterval, slog.Default()).Run(ctx)

	if *tcpAddr != "" {
		go func() {
			if err := runTCPListener(acceptCtx, ctx, *tcpAddr, reg, limiter); err != nil {
				log.Printf("[tcp] %v", err)
			}
		}()
	}

	api := httpapi.New(reg, limiter)

	var tlsConfig *tls.Config
	if *useTLS {
		cfg, fingerprint, err := generateTLSConfig(*certValidity, "")
		if err != nil {
			log.Fatalf("[server] %v", err)
		}
		log.Printf("[server] TLS certificate fingerprint: %s", fingerprint)
		tlsConfig = cfg
	}

	log.Printf("[server] listening on %s (ws), %s (tcp)", *addr, *tcpAddr)
	if err := api.Run(acceptCtx, *addr, tlsConfig); err != nil {
		log.Fatalf("[server] %v", err)
	}

	select {
	case <-shutdownDone:
	case <-ctx.Done():
	}
}

// runTCPListener accepts raw TCP connections and serves each with the same
// frame-codec connection state machine as the websocket listener, using
// net.Listener directly rather than a hand-rolled reactor: the netpoller
// already multiplexes blocking Accept/Read across goroutines. acceptCtx
// stops the Accept loop (no new connections once shutdown begins); connCtx
// governs each already-admitted connection's lifetime so it can keep
// draining its event queue through the shutdown grace period.
func runTCPListener(acceptCtx, connCtx context.Context, addr string, reg *registry.Registry, limiter *connlimit.Limiter) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(acceptCtx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-acceptCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-acceptCtx.Done():
				return nil
			default:
				return err
			}
		}

		remoteAddr := conn.RemoteAddr().String()
		ip, _, _ := net.SplitHostPort(remoteAddr)
		if !limiter.Admit(ip) {
			conn.Close()
			continue
		}

		go func() {
			defer limiter.Release(ip)
			wrapped := transport.NewTCP(conn)
			logger := slog.With("remote", remoteAddr, "transport", "tcp")
			connection.New(wrapped, reg, logger).Run(connCtx)
		}()
	}
}
