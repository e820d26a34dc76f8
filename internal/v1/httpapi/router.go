package httpapi

import (
	"github.com/arcadeparty/backend/internal/v1/health"
	"github.com/arcadeparty/backend/internal/v1/middleware"
	"github.com/arcadeparty/backend/internal/v1/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything NewRouter wires into the gin engine.
// Health, Limiter, and ServeWs may be nil (tests exercise the API surface
// without them).
type RouterConfig struct {
	Server         *Server
	Health         *health.Handler
	Limiter        *ratelimit.RateLimiter
	ServeWs        gin.HandlerFunc
	AllowedOrigins []string
}

// NewRouter assembles the full HTTP surface: operational endpoints, the
// WebSocket entry, and the /api groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, middleware.HeaderXCorrelationID)
		router.Use(cors.New(corsCfg))
	}

	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Health)
		router.GET("/health/live", cfg.Health.Liveness)
		router.GET("/health/ready", cfg.Health.Readiness)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.ServeWs != nil {
		router.GET("/ws/lobby", cfg.ServeWs)
	}

	s := cfg.Server
	api := router.Group("/api")
	if cfg.Limiter != nil {
		api.Use(cfg.Limiter.GlobalMiddleware())
	}

	rooms := api.Group("/rooms")
	if cfg.Limiter != nil {
		rooms.Use(cfg.Limiter.PublicMiddleware())
	}
	// /active and /create are registered before the :roomId routes so the
	// literal segments are never read as room ids.
	rooms.GET("/active", s.listActiveRooms)
	rooms.POST("/create", s.createRoomShell)
	rooms.GET("", s.listRooms)
	rooms.GET("/:roomId", s.getRoom)
	rooms.GET("/:roomId/players", s.getRoomPlayers)

	admin := api.Group("/admin")
	if cfg.Limiter != nil {
		admin.Use(cfg.Limiter.AdminMiddleware())
	}
	admin.POST("/close-room/:roomId", s.closeRoom)
	admin.POST("/cleanup-stale", s.cleanupStale)
	admin.POST("/cleanup-room/:roomId", s.cleanupRoom)

	profiles := api.Group("/user-profiles")
	if cfg.Limiter != nil {
		profiles.Use(cfg.Limiter.PublicMiddleware())
	}
	profiles.GET("", s.listProfiles)
	profiles.POST("", s.createProfile)
	profiles.GET("/active", s.listActiveProfiles)
	profiles.GET("/search", s.searchProfiles)
	profiles.GET("/:id", s.getProfile)
	profiles.PATCH("/:id", s.updateProfile)
	profiles.DELETE("/:id", s.deleteProfile)
	profiles.POST("/:id/activate", s.activateProfile)
	profiles.POST("/:id/deactivate", s.deactivateProfile)

	wins := api.Group("/wins")
	if cfg.Limiter != nil {
		wins.Use(cfg.Limiter.PublicMiddleware())
	}
	wins.GET("/:gameType", s.winsByGame)
	wins.GET("/player/:id", s.winsByPlayer)
	wins.GET("/room/:roomId/:gameType", s.winsByRoom)

	return router
}
