package httpserver

import (
	"errors"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"soc-realtime/internal/hub"
	"soc-realtime/pkg/log"
)

// HTTPServer hosts the realtime hub behind gin with health endpoints.
// New() only wires dependencies and validates them; Run() (in
// httpserver.go) owns the lifecycle of the hub, the optional Redis
// bridge, and HTTP serving.
type HTTPServer struct {
	gin    *gin.Engine
	logger log.Logger
	host   string
	port   int

	hub        *hub.Hub
	wsHandler  *hub.Handler
	subscriber *hub.Subscriber

	// nil when the Redis bridge is disabled
	redis *goredis.Client
}

// Config is the constructor input for HTTPServer.
type Config struct {
	Host string
	Port int

	// Mode maps to the gin mode ("release", "debug", "test").
	Mode string

	Hub       *hub.Hub
	WSHandler *hub.Handler

	// Optional Redis bridge
	Subscriber *hub.Subscriber
	Redis      *goredis.Client
}

// New creates a new HTTPServer instance with the provided configuration.
// Note: this does NOT start any goroutines. Use (*HTTPServer).Run().
func New(logger log.Logger, cfg Config) (*HTTPServer, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	srv := &HTTPServer{
		gin:        gin.New(),
		logger:     logger,
		host:       cfg.Host,
		port:       cfg.Port,
		hub:        cfg.Hub,
		wsHandler:  cfg.WSHandler,
		subscriber: cfg.Subscriber,
		redis:      cfg.Redis,
	}

	if err := srv.validate(); err != nil {
		return nil, err
	}

	return srv, nil
}

// validate ensures all required dependencies are provided.
func (srv *HTTPServer) validate() error {
	if srv.logger == nil {
		return errors.New("logger is required")
	}
	if srv.port == 0 {
		return errors.New("port is required")
	}
	if srv.hub == nil {
		return errors.New("hub is required")
	}
	if srv.wsHandler == nil {
		return errors.New("websocket handler is required")
	}
	return nil
}
