package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/jwt"
	"soc-realtime/pkg/log"
)

// WSConfig holds per-connection websocket configuration.
type WSConfig struct {
	PongWait        time.Duration
	PingPeriod      time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// Handler handles realtime websocket connection requests.
type Handler struct {
	hub          *Hub
	jwtValidator *jwt.Validator
	logger       log.Logger
	wsConfig     WSConfig
	upgrader     websocket.Upgrader
}

// NewHandler creates a new websocket handler. A nil jwtValidator
// disables token checks (development mode).
func NewHandler(hub *Hub, jwtValidator *jwt.Validator, logger log.Logger, wsConfig WSConfig) *Handler {
	return &Handler{
		hub:          hub,
		jwtValidator: jwtValidator,
		logger:       logger,
		wsConfig:     wsConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsConfig.ReadBufferSize,
			WriteBufferSize: wsConfig.WriteBufferSize,
			// Allow all origins for now (configure in production)
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleRealtime upgrades the request and registers the connection.
func (h *Handler) HandleRealtime(c *gin.Context) {
	if h.jwtValidator != nil {
		token := c.Query("token")
		if token == "" {
			h.logger.Warn(context.Background(), "Connection rejected: missing token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token parameter"})
			return
		}
		userID, err := h.jwtValidator.ExtractUserID(token)
		if err != nil {
			h.logger.Warnf(context.Background(), "Connection rejected: invalid token - %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		h.logger.Infof(context.Background(), "Authenticated realtime connection for user: %s", userID)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf(context.Background(), "Failed to upgrade connection: %v", err)
		return
	}

	connection := NewConnection(
		h.hub,
		conn,
		h.wsConfig.PongWait,
		h.wsConfig.PingPeriod,
		h.wsConfig.WriteWait,
		h.wsConfig.MaxMessageSize,
		h.logger,
	)

	if !h.hub.Register(connection) {
		conn.Close()
		return
	}
	connection.Start()
}

// HandleStats reports hub statistics.
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// SetupRoutes sets up the realtime routes.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET(realtime.DefaultPath, h.HandleRealtime)
	router.GET("/api/v1/realtime/stats", h.HandleStats)
}
