package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgRedis "soc-realtime/pkg/redis"
)

// healthCheck reports overall service health, including hub load and
// Redis bridge connectivity when the bridge is enabled.
func (srv *HTTPServer) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	redisStatus := "disabled"
	if srv.redis != nil {
		if _, err := pkgRedis.Ping(ctx, srv.redis); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"redis":  "disconnected",
			})
			return
		}
		redisStatus = "connected"
	}

	stats := srv.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"service":            "soc-realtime-hub",
		"active_connections": stats.ActiveConnections,
		"active_topics":      stats.ActiveTopics,
		"redis":              redisStatus,
	})
}

// readyCheck reports whether the service is ready to accept connections.
func (srv *HTTPServer) readyCheck(c *gin.Context) {
	ctx := c.Request.Context()

	if srv.redis != nil {
		if _, err := pkgRedis.Ping(ctx, srv.redis); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"redis":  "disconnected",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "soc-realtime-hub",
	})
}

// liveCheck reports process liveness only.
func (srv *HTTPServer) liveCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"service": "soc-realtime-hub",
	})
}
