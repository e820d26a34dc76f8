// Package health serves the operational endpoints: the detailed /health
// census plus the liveness/readiness probes.
package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arcadeparty/backend/internal/v1/logging"
)

// Stats is the hub census the detailed health payload reports. Defined here
// so the package stays decoupled from the lobby; callers adapt.
type Stats struct {
	ActiveRooms      int
	ActivePlayers    int
	TotalRooms       int
	TotalConnections int
	RoomsWithClients int
}

// StatsFunc supplies a point-in-time census.
type StatsFunc func() Stats

// Handler answers the health endpoints.
type Handler struct {
	stats     StatsFunc
	redis     *redis.Client // nil when Redis is disabled
	goEnv     string
	port      string
	startedAt time.Time
}

// NewHandler builds a health handler. redisClient may be nil.
func NewHandler(stats StatsFunc, redisClient *redis.Client, goEnv, port string) *Handler {
	return &Handler{
		stats:     stats,
		redis:     redisClient,
		goEnv:     goEnv,
		port:      port,
		startedAt: time.Now(),
	}
}

type uptimeInfo struct {
	Milliseconds int64  `json:"ms"`
	Seconds      int64  `json:"s"`
	Minutes      int64  `json:"m"`
	Hours        int64  `json:"h"`
	Days         int64  `json:"d"`
	Formatted    string `json:"formatted"`
}

type roomsInfo struct {
	ActiveRooms   int `json:"activeRooms"`
	ActivePlayers int `json:"activePlayers"`
	TotalRooms    int `json:"totalRooms"`
}

type socketsInfo struct {
	TotalConnections int `json:"totalConnections"`
	ActiveRooms      int `json:"activeRooms"` // rooms with at least one live socket
}

type environmentInfo struct {
	GoEnv string `json:"goEnv"`
	Port  string `json:"port"`
}

// HealthResponse is the detailed GET /health payload.
type HealthResponse struct {
	Status      string            `json:"status"`
	Uptime      uptimeInfo        `json:"uptime"`
	Rooms       roomsInfo         `json:"rooms"`
	Sockets     socketsInfo       `json:"sockets"`
	Render      map[string]string `json:"render,omitempty"`
	Environment environmentInfo   `json:"environment"`
	Timestamp   string            `json:"timestamp"`
}

// Health handles GET /health: uptime, room and socket census, and the
// hosting environment passthrough.
func (h *Handler) Health(c *gin.Context) {
	s := h.stats()

	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: buildUptime(time.Since(h.startedAt)),
		Rooms: roomsInfo{
			ActiveRooms:   s.ActiveRooms,
			ActivePlayers: s.ActivePlayers,
			TotalRooms:    s.TotalRooms,
		},
		Sockets: socketsInfo{
			TotalConnections: s.TotalConnections,
			ActiveRooms:      s.RoomsWithClients,
		},
		Render: renderEnvironment(),
		Environment: environmentInfo{
			GoEnv: h.goEnv,
			Port:  h.port,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// buildUptime breaks one duration into the cumulative units clients render.
func buildUptime(d time.Duration) uptimeInfo {
	ms := d.Milliseconds()
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	return uptimeInfo{
		Milliseconds: ms,
		Seconds:      seconds,
		Minutes:      minutes,
		Hours:        hours,
		Days:         days,
		Formatted: fmt.Sprintf("%dd %dh %dm %ds",
			days, hours%24, minutes%60, seconds%60),
	}
}

// renderEnvironment collects the RENDER_* metadata the hosting platform
// injects, when present. Returns nil elsewhere so the field is omitted.
func renderEnvironment() map[string]string {
	keys := []string{
		"RENDER_SERVICE_NAME",
		"RENDER_INSTANCE_ID",
		"RENDER_GIT_COMMIT",
		"RENDER_EXTERNAL_URL",
	}

	var out map[string]string
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			if out == nil {
				out = make(map[string]string, len(keys))
			}
			out[key] = value
		}
	}
	return out
}

// LivenessResponse is the GET /health/live payload.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Liveness handles GET /health/live. Returns 200 whenever the process is
// alive; no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessResponse is the GET /health/ready payload.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Readiness handles GET /health/ready. Returns 200 only while every
// configured dependency answers; 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkRedis pings Redis when configured. Single-instance deployments run
// without Redis and are considered healthy.
func (h *Handler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return "healthy"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
