// Package server wires the gateway's HTTP surface: session token minting,
// the realtime websocket relay, and the chat/TTS proxies.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voxlink/voxlink/pkg/gateway/auth"
	"github.com/voxlink/voxlink/pkg/gateway/config"
	"github.com/voxlink/voxlink/pkg/gateway/proxy"
	"github.com/voxlink/voxlink/pkg/gateway/relay"
)

// Server is the gateway HTTP/websocket server.
type Server struct {
	echo   *echo.Echo
	cfg    config.Config
	logger *zap.Logger

	issuer *auth.Issuer
	relay  *relay.Relay
	chat   *proxy.Chat
	speech *proxy.Speech

	upgrader websocket.Upgrader
}

// New builds a fully wired server.
func New(cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	upstreamHeader := http.Header{}
	upstreamHeader.Set("Authorization", "Bearer "+cfg.UpstreamAPIKey)

	s := &Server{
		echo:   echo.New(),
		cfg:    cfg,
		logger: logger,
		issuer: auth.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
		relay:  relay.New(cfg.UpstreamRealtimeURL, upstreamHeader, logger),
		chat:   proxy.NewChat(cfg.UpstreamAPIBase, cfg.UpstreamAPIKey, logger),
		speech: proxy.NewSpeech(cfg.UpstreamAPIBase, cfg.UpstreamAPIKey, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay fronts browser clients on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(s.requestLog)
	s.routes()
	return s
}

// requestLog logs one line per completed request.
func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("took", time.Since(start)),
		)
		return err
	}
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.POST("/v1/session", s.handleSession)

	guarded := s.echo.Group("/v1", s.requireToken)
	guarded.GET("/realtime", s.handleRealtime)
	guarded.POST("/chat/completions", s.handleChat)
	guarded.POST("/tts", s.handleSpeech)
}

// Start begins serving on addr. Blocks until shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router. Test hook.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession mints an ephemeral client token.
func (s *Server) handleSession(c echo.Context) error {
	if !s.issuer.Enabled() {
		return c.JSON(http.StatusOK, map[string]any{"auth": false})
	}
	token, sessionID, err := s.issuer.Mint()
	if err != nil {
		s.logger.Error("token mint failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "token mint failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"auth":       true,
		"token":      token,
		"session_id": sessionID,
		"expires_in": int(s.cfg.TokenTTL.Seconds()),
	})
}

// requireToken validates the session token when auth is enabled. Websocket
// clients may pass the token as a query parameter since browsers cannot set
// headers on the upgrade request.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.issuer.Enabled() {
			return next(c)
		}
		token := c.Request().Header.Get("Authorization")
		if token == "" {
			token = c.QueryParam("token")
		}
		if _, err := s.issuer.Verify(token); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
		}
		return next(c)
	}
}

// handleRealtime upgrades the client connection and hands it to the relay.
func (s *Server) handleRealtime(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	s.relay.Pipe(conn)
	return nil
}

func (s *Server) handleChat(c echo.Context) error {
	var req proxy.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return s.chat.Forward(c.Response(), c.Request(), req)
}

func (s *Server) handleSpeech(c echo.Context) error {
	var req proxy.SpeechRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return s.speech.Forward(c.Response(), c.Request(), req)
}
