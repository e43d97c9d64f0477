// Package ws upgrades incoming HTTP requests to WebSocket and hands the
// resulting socket to internal/connection for the rest of its life.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bpeel/verda-sxtelo-sub002/internal/connection"
	"github.com/bpeel/verda-sxtelo-sub002/internal/connlimit"
	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
	"github.com/bpeel/verda-sxtelo-sub002/internal/transport"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler owns the websocket upgrade for the game server.
type Handler struct {
	reg      *registry.Registry
	limiter  *connlimit.Limiter
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler bound to reg. limiter may be nil,
// in which case connections are never rejected for capacity reasons.
func NewHandler(reg *registry.Registry, limiter *connlimit.Limiter) *Handler {
	return &Handler{
		reg:     reg,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the websocket route on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	slog.Debug("ws upgrade request", "remote", remoteAddr)

	if h.limiter != nil && !h.limiter.Admit(remoteAddr) {
		slog.Warn("ws connection rejected, limit reached", "remote", remoteAddr)
		return echo.NewHTTPError(http.StatusTooManyRequests, "connection limit reached")
	}
	if h.limiter != nil {
		defer h.limiter.Release(remoteAddr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("ws upgrade failed", "remote", remoteAddr, "err", err)
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	wrapped := transport.NewWebSocket(conn)
	gameConn := connection.New(wrapped, h.reg, slog.With("remote", remoteAddr))
	gameConn.Run(c.Request().Context())
	return nil
}

// Run is an alternative entry point for callers driving a connection
// outside an echo.Context.
func Run(ctx context.Context, conn transport.Conn, reg *registry.Registry, logger *slog.Logger) {
	connection.New(conn, reg, logger).Run(ctx)
}
