package httpapi

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/connlimit"
	"github.com/bpeel/verda-sxtelo-sub002/internal/idalloc"
	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
	"github.com/bpeel/verda-sxtelo-sub002/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the Echo application exposing the game's HTTP surface: the
// websocket upgrade, a liveness probe, and the invite-link landing page.
type Server struct {
	echo *echo.Echo
	reg  *registry.Registry
}

// New constructs an Echo app with the websocket route plus the small
// amount of plain HTTP a browser-based client needs. limiter may be nil.
func New(reg *registry.Registry, limiter *connlimit.Limiter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, reg: reg}
	s.registerRoutes(limiter)
	return s
}

// requestLogger returns Echo middleware that logs each HTTP request via slog.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path

			if path == "/ws" || path == "/healthz" {
				slog.Debug("http request",
					"method", req.Method,
					"path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			} else {
				slog.Info("http request",
					"method", req.Method,
					"path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP(),
				)
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes(limiter *connlimit.Limiter) {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/j/:id", s.handleJoinLanding)
	ws.NewHandler(s.reg, limiter).Register(s.echo)
}

// Run starts Echo and blocks until ctx cancellation or startup failure. If
// tlsConfig is non-nil, the listener serves TLS using it instead of plain
// HTTP.
func (s *Server) Run(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	errCh := make(chan error, 1)
	go func() {
		httpSrv := &http.Server{Addr: addr, TLSConfig: tlsConfig}
		err := s.echo.StartServer(httpSrv)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("http server stopped")
		return nil
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	Players       int    `json:"players"`
	Conversations int    `json:"conversations"`
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		Players:       s.reg.NPlayers(),
		Conversations: s.reg.NConversations(),
	})
}

type joinLandingResponse struct {
	ConversationID string `json:"conversation_id"`
	Valid          bool   `json:"valid"`
}

// handleJoinLanding is a read-only diagnostic mirroring the role of the
// external QR-code generator: it decodes an invite id and reports whether
// the conversation it names still exists. It does not join the caller to
// anything; the native client resolves /j/:id links itself.
func (s *Server) handleJoinLanding(c echo.Context) error {
	id := c.Param("id")
	decoded, ok := idalloc.Decode(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not a valid invite link")
	}

	_, valid := s.reg.Conversation(decoded)
	return c.JSON(http.StatusOK, joinLandingResponse{
		ConversationID: id,
		Valid:          valid,
	})
}
