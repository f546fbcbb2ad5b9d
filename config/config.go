package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	// Client Configuration
	Client ClientConfig

	// Notification store Configuration
	Store StoreConfig

	// Development hub Configuration
	Hub   HubConfig
	Redis RedisConfig
	JWT   JWTConfig

	// Discord webhook Configuration
	Discord DiscordConfig

	// Logger Configuration
	Logger LoggerConfig
}

// ClientConfig is the configuration for the realtime client
type ClientConfig struct {
	// BaseURL is the http(s) origin of the backend; the websocket endpoint
	// is derived from it (ws/wss scheme, /api/v1/realtime/ws path).
	BaseURL  string   `env:"RT_BASE_URL" envDefault:"http://localhost:8081"`
	Token    string   `env:"RT_TOKEN"`
	Channels []string `env:"RT_CHANNELS" envSeparator:"," envDefault:"alerts,notifications,dashboard_updates"`

	ReconnectBaseDelay   time.Duration `env:"RT_RECONNECT_BASE_DELAY" envDefault:"3s"`
	ReconnectMaxAttempts int           `env:"RT_RECONNECT_MAX_ATTEMPTS" envDefault:"5"`
	HeartbeatInterval    time.Duration `env:"RT_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HandshakeTimeout     time.Duration `env:"RT_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	WriteWait            time.Duration `env:"RT_WRITE_WAIT" envDefault:"10s"`
}

// StoreConfig is the configuration for the notification store
type StoreConfig struct {
	MaxNotifications int           `env:"STORE_MAX_NOTIFICATIONS" envDefault:"50"`
	AutoExpiry       time.Duration `env:"STORE_AUTO_EXPIRY" envDefault:"5s"`
	MaxFeedEntries   int           `env:"STORE_MAX_FEED_ENTRIES" envDefault:"100"`

	// Backend selects the persistence backend: "file" or "badger".
	Backend string `env:"STORE_BACKEND" envDefault:"file"`
	Path    string `env:"STORE_PATH" envDefault:".soc-realtime"`
}

// HubConfig is the configuration for the development realtime hub
type HubConfig struct {
	Host string `env:"HUB_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"HUB_PORT" envDefault:"8081"`
	Mode string `env:"HUB_MODE" envDefault:"release"`

	PingInterval    time.Duration `env:"HUB_PING_INTERVAL" envDefault:"30s"`
	PongWait        time.Duration `env:"HUB_PONG_WAIT" envDefault:"60s"`
	WriteWait       time.Duration `env:"HUB_WRITE_WAIT" envDefault:"10s"`
	MaxMessageSize  int64         `env:"HUB_MAX_MESSAGE_SIZE" envDefault:"4096"`
	ReadBufferSize  int           `env:"HUB_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int           `env:"HUB_WRITE_BUFFER_SIZE" envDefault:"1024"`
	MaxConnections  int           `env:"HUB_MAX_CONNECTIONS" envDefault:"10000"`
}

// RedisConfig is the configuration for the hub's Redis bridge
// Note: Only standalone mode is supported
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Pattern for channels bridged onto hub topics: realtime:{topic}
	Pattern string `env:"REDIS_PATTERN" envDefault:"realtime:*"`
}

// JWTConfig is the configuration for handshake authentication.
// An empty secret disables token checks (development mode).
type JWTConfig struct {
	SecretKey string `env:"JWT_SECRET_KEY"`
}

// DiscordConfig is the configuration for the Discord webhook sink.
// Empty credentials disable it.
type DiscordConfig struct {
	WebhookID    string `env:"DISCORD_WEBHOOK_ID"`
	WebhookToken string `env:"DISCORD_WEBHOOK_TOKEN"`

	// MinPriority is the lowest notification priority forwarded to the
	// webhook: "normal", "high", or "critical".
	MinPriority string `env:"DISCORD_MIN_PRIORITY" envDefault:"high"`
}

// LoggerConfig is the configuration for the logger
type LoggerConfig struct {
	Level        string `env:"LOGGER_LEVEL" envDefault:"info"`
	Mode         string `env:"LOGGER_MODE" envDefault:"production"`
	Encoding     string `env:"LOGGER_ENCODING" envDefault:"json"`
	ColorEnabled bool   `env:"LOGGER_COLOR_ENABLED" envDefault:"true"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
