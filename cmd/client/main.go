package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"soc-realtime/config"
	"soc-realtime/internal/feed"
	"soc-realtime/internal/notification"
	"soc-realtime/internal/realtime"
	"soc-realtime/internal/storage"
	"soc-realtime/pkg/discord"
	"soc-realtime/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		return
	}

	// Initialize logger
	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx := context.Background()

	// Initialize notification persistence
	blob, cleanup, err := openBlob(cfg.Store)
	if err != nil {
		logger.Fatalf(ctx, "Failed to open notification storage: %v", err)
	}
	defer cleanup()

	store := notification.NewStore(notification.Config{
		MaxNotifications: cfg.Store.MaxNotifications,
		AutoExpiry:       cfg.Store.AutoExpiry,
	}, blob, logger)
	defer store.Close()

	logger.Infof(ctx, "Loaded %d stored notifications (%d unread)", len(store.List()), store.UnreadCount())

	// Initialize realtime client
	endpoint, err := realtime.EndpointFromBase(cfg.Client.BaseURL)
	if err != nil {
		logger.Fatalf(ctx, "Invalid base URL: %v", err)
	}

	client, err := realtime.NewClient(realtime.Options{
		Endpoint: endpoint,
		Token:    cfg.Client.Token,
		Policy: realtime.ReconnectPolicy{
			BaseDelay:   cfg.Client.ReconnectBaseDelay,
			MaxAttempts: cfg.Client.ReconnectMaxAttempts,
		},
		HeartbeatInterval: cfg.Client.HeartbeatInterval,
		HandshakeTimeout:  cfg.Client.HandshakeTimeout,
		WriteWait:         cfg.Client.WriteWait,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatalf(ctx, "Failed to create client: %v", err)
	}

	client.OnStateChange(func(change realtime.StateChange) {
		logger.Infof(ctx, "Connection state: %s -> %s", change.Old, change.New)
	})

	// Wire consumers
	alerts := feed.NewFeed(cfg.Store.MaxFeedEntries, logger)
	alerts.Bind(client)

	sinks := []feed.Sink{feed.NewConsoleSink(os.Stdout)}
	if cfg.Discord.WebhookID != "" && cfg.Discord.WebhookToken != "" {
		dc, err := discord.New(logger, discord.Webhook{
			ID:    cfg.Discord.WebhookID,
			Token: cfg.Discord.WebhookToken,
		})
		if err != nil {
			logger.Fatalf(ctx, "Failed to create Discord client: %v", err)
		}
		defer dc.Close()
		sinks = append(sinks, feed.NewDiscordSink(dc, notification.Priority(cfg.Discord.MinPriority)))
		logger.Info(ctx, "Discord webhook sink enabled")
	}
	feed.BindStore(client, store, logger, sinks...)

	// Connect and subscribe
	client.Subscribe(cfg.Client.Channels...)
	if err := client.Connect(ctx); err != nil {
		logger.Warnf(ctx, "Initial connect failed, retrying: %v", err)
	}

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Disconnecting...")
	client.Close()

	logger.Infof(ctx, "%d alerts in feed, %d unread notifications", alerts.Len(), store.UnreadCount())
}

// openBlob selects the persistence backend from config.
func openBlob(cfg config.StoreConfig) (storage.Blob, func(), error) {
	switch cfg.Backend {
	case "badger":
		b, err := storage.OpenBadger(storage.BadgerConfig{
			Path: filepath.Join(cfg.Path, "badger"),
			Key:  "notifications",
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	default:
		f, err := storage.NewFile(filepath.Join(cfg.Path, "notifications.json"))
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}
