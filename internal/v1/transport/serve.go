package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/ratelimit"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// UpgradeHandler turns HTTP requests into WebSocket clients wired to a
// router. One handler serves every connection.
type UpgradeHandler struct {
	router         types.ConnectionRouter
	limiter        *ratelimit.RateLimiter
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewUpgradeHandler builds the WebSocket entry point. limiter may be nil to
// disable connection rate limiting (tests).
func NewUpgradeHandler(router types.ConnectionRouter, limiter *ratelimit.RateLimiter, allowedOrigins []string) *UpgradeHandler {
	h := &UpgradeHandler{
		router:         router,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}
	return h
}

// ServeWs upgrades one request. Rate limiting runs first so abusive IPs
// never reach the upgrader.
func (h *UpgradeHandler) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return // response already written
	}

	if err := validateOrigin(c.Request, h.allowedOrigins); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection wires an established connection into the router and
// starts its pumps.
func (h *UpgradeHandler) HandleConnection(conn wsConnection) {
	client := NewClient(conn, h.router)
	metrics.IncConnection()

	logging.Info(context.Background(), "WebSocket connection established",
		zap.String("connection_id", string(client.GetID())))

	h.router.HandleClientConnect(client)

	go client.writePump()
	go client.readPump()
}

// validateOrigin enforces an exact scheme+host match against the allow
// list. Requests without an Origin header (non-browser clients, tests) are
// allowed; browsers always send one.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "Invalid origin URL",
			zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(context.Background(), "Origin not in allowed list",
		zap.String("origin", origin),
		zap.Strings("allowed_origins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}
