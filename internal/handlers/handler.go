package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/webrtc-call/internal/middleware"
	"github.com/mossy-p/webrtc-call/internal/redis"
	"github.com/mossy-p/webrtc-call/internal/relay"
)

// Handler serves the call management API and the signaling websocket.
type Handler struct {
	store     *redis.Store
	registry  *relay.Registry
	logger    logrus.FieldLogger
	jwtSecret string
	queueSize int
}

// New creates a Handler. queueSize bounds each participant's outbound queue.
func New(store *redis.Store, registry *relay.Registry, logger logrus.FieldLogger, jwtSecret string, queueSize int) *Handler {
	return &Handler{
		store:     store,
		registry:  registry,
		logger:    logger,
		jwtSecret: jwtSecret,
		queueSize: queueSize,
	}
}

// Register mounts all routes on router.
func (h *Handler) Register(router gin.IRouter) {
	// Call management API
	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", h.Login)

		// Create call (requires JWT)
		apiGroup.POST("/calls", middleware.JWTAuth(h.jwtSecret), h.CreateCall)

		// Get call info (public)
		apiGroup.GET("/calls/:callId", h.GetCall)

		// Delete call (requires JWT, creator only)
		apiGroup.DELETE("/calls/:callId", middleware.JWTAuth(h.jwtSecret), h.DeleteCall)
	}

	// WebSocket signaling endpoints
	router.GET("/ws", h.HandleLobby)
	wsGroup := router.Group("/ws")
	{
		// Call-scoped signaling - accepts call code or ID
		wsGroup.GET("/signal/:callId", h.HandleSignaling)
	}
}
