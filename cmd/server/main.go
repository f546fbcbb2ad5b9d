package main

import (
	"context"
	"fmt"
	"os"

	"soc-realtime/config"
	"soc-realtime/internal/httpserver"
	"soc-realtime/internal/hub"
	"soc-realtime/pkg/jwt"
	"soc-realtime/pkg/log"
	pkgRedis "soc-realtime/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx := context.Background()
	logger.Info(ctx, "Starting realtime hub...")

	// JWT validator (optional)
	var jwtValidator *jwt.Validator
	if cfg.JWT.SecretKey != "" {
		jwtValidator = jwt.NewValidator(jwt.Config{SecretKey: cfg.JWT.SecretKey})
	} else {
		logger.Warn(ctx, "JWT secret not set, handshake authentication disabled")
	}

	h := hub.NewHub(logger, cfg.Hub.MaxConnections)

	handler := hub.NewHandler(h, jwtValidator, logger, hub.WSConfig{
		PongWait:        cfg.Hub.PongWait,
		PingPeriod:      cfg.Hub.PingInterval,
		WriteWait:       cfg.Hub.WriteWait,
		MaxMessageSize:  cfg.Hub.MaxMessageSize,
		ReadBufferSize:  cfg.Hub.ReadBufferSize,
		WriteBufferSize: cfg.Hub.WriteBufferSize,
	})

	srvCfg := httpserver.Config{
		Host:      cfg.Hub.Host,
		Port:      cfg.Hub.Port,
		Mode:      cfg.Hub.Mode,
		Hub:       h,
		WSHandler: handler,
	}

	// Redis bridge (optional)
	if cfg.Redis.Enabled {
		client, err := pkgRedis.Connect(pkgRedis.Config{
			Host:     cfg.Redis.Host,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		srvCfg.Redis = client
		srvCfg.Subscriber = hub.NewSubscriber(client, cfg.Redis.Pattern, h, logger)
	}

	srv, err := httpserver.New(logger, srvCfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		logger.Fatalf(ctx, "Server error: %v", err)
	}
}
