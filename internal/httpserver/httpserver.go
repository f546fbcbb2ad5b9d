package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soc-realtime/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

// Run starts the hub and all background services, then blocks until a
// shutdown signal:
//  1. Map HTTP handlers and routes
//  2. Start the hub loop
//  3. Start the optional Redis bridge
//  4. Start the HTTP server
//  5. Wait for shutdown signal, then stop everything in reverse order
func (srv *HTTPServer) Run() error {
	ctx := context.Background()

	srv.mapHandlers()

	go srv.hub.Run()
	srv.logger.Info(ctx, "Hub started")

	if srv.subscriber != nil {
		if err := srv.subscriber.Start(); err != nil {
			return fmt.Errorf("start redis subscriber: %w", err)
		}
		srv.logger.Info(ctx, "Redis bridge started")
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", srv.host, srv.port),
		Handler: srv.gin,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srv.logger.Errorf(ctx, "HTTP server error: %v", err)
		}
	}()
	srv.logger.Infof(ctx, "Realtime hub listening on %s:%d", srv.host, srv.port)

	// Wait for shutdown signal
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	srv.logger.Info(ctx, "Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv.subscriber != nil {
		if err := srv.subscriber.Shutdown(shutdownCtx); err != nil {
			srv.logger.Errorf(ctx, "Redis subscriber shutdown error: %v", err)
		}
	}
	if err := srv.hub.Shutdown(shutdownCtx); err != nil {
		srv.logger.Errorf(ctx, "Hub shutdown error: %v", err)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		srv.logger.Errorf(ctx, "HTTP server shutdown error: %v", err)
	}
	if srv.redis != nil {
		if err := srv.redis.Close(); err != nil {
			srv.logger.Errorf(ctx, "Redis close error: %v", err)
		}
	}

	srv.logger.Info(ctx, "Server shutdown complete")
	return nil
}

// mapHandlers registers middleware and routes.
func (srv *HTTPServer) mapHandlers() {
	srv.gin.Use(middleware.Recovery(srv.logger))
	srv.gin.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Health check endpoints (no auth required)
	srv.gin.GET("/health", srv.healthCheck)
	srv.gin.GET("/ready", srv.readyCheck)
	srv.gin.GET("/live", srv.liveCheck)

	srv.wsHandler.SetupRoutes(srv.gin)
}
