package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/services/campaignsync"
)

// Push transports
const (
	TransportRabbitMQ  = "rabbitmq"
	TransportWebSocket = "websocket"
)

// PlatformConfig holds the messaging platform endpoints
type PlatformConfig struct {
	BaseURL  string
	APIToken string
	WSURL    string
	Timeout  time.Duration
}

// RabbitMQConfig holds the broker connection
type RabbitMQConfig struct {
	Host        string
	Port        string
	User        string
	Pass        string
	EventsQueue string
}

// URL builds the amqp connection URL
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Pass, c.Host, c.Port)
}

// DatabaseConfig holds the postgres connection of the control journal
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether every required field is set
func (c DatabaseConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.User != "" && c.Password != "" && c.Name != ""
}

// DSN builds the postgres DSN
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Config is the daemon configuration
type Config struct {
	Port            string
	BasePath        string
	LogLevel        string
	Environment     string
	SentryDSN       string
	DashboardAPIKey string
	PushTransport   string

	Platform PlatformConfig
	RabbitMQ RabbitMQConfig
	Database DatabaseConfig
	Engine   campaignsync.Config

	SSEHeartbeatInterval    time.Duration
	ControlLogRetentionDays int
	ControlLogCleanupEvery  time.Duration
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	engine := campaignsync.DefaultConfig()
	engine.ControlTimeout = getEnvAsDuration("CONTROL_TIMEOUT", engine.ControlTimeout)
	engine.GraceWindow = getEnvAsDuration("CONTROL_GRACE_WINDOW", engine.GraceWindow)
	engine.ProgressThrottle = getEnvAsDuration("PROGRESS_THROTTLE", engine.ProgressThrottle)
	engine.RefetchDelay = getEnvAsDuration("REFETCH_DELAY", engine.RefetchDelay)
	engine.HealthInterval = getEnvAsDuration("HEALTH_POLL_INTERVAL", engine.HealthInterval)
	engine.HealthFastInterval = getEnvAsDuration("HEALTH_POLL_FAST_INTERVAL", engine.HealthFastInterval)

	autoPause, err := models.ParseControlAction(getEnv("AUTO_PAUSE_REMOTE_ACTION", string(models.ActionStop)))
	if err != nil || (autoPause != models.ActionStop && autoPause != models.ActionPause) {
		return nil, fmt.Errorf("AUTO_PAUSE_REMOTE_ACTION must be stop or pause")
	}
	engine.AutoPauseAction = autoPause

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		BasePath:        getEnv("BASE_PATH", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DashboardAPIKey: getEnv("DASHBOARD_API_KEY", ""),
		PushTransport:   strings.ToLower(getEnv("PUSH_TRANSPORT", TransportRabbitMQ)),
		Platform: PlatformConfig{
			BaseURL:  strings.TrimSuffix(getEnv("PLATFORM_BASE_URL", ""), "/"),
			APIToken: getEnv("PLATFORM_API_TOKEN", ""),
			WSURL:    getEnv("PLATFORM_WS_URL", ""),
			Timeout:  getEnvAsDuration("PLATFORM_HTTP_TIMEOUT", 30*time.Second),
		},
		RabbitMQ: RabbitMQConfig{
			Host:        getEnv("RABBITMQ_HOST", "localhost"),
			Port:        getEnv("RABBITMQ_PORT", "5672"),
			User:        getEnv("RABBITMQ_USER", "guest"),
			Pass:        getEnv("RABBITMQ_PASS", "guest"),
			EventsQueue: getEnv("RABBITMQ_EVENTS_QUEUE", "campaign_events"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", ""),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Engine:                  engine,
		SSEHeartbeatInterval:    getEnvAsDuration("SSE_HEARTBEAT_INTERVAL", 15*time.Second),
		ControlLogRetentionDays: getEnvAsInt("CONTROL_LOG_RETENTION_DAYS", 30),
		ControlLogCleanupEvery:  getEnvAsDuration("CONTROL_LOG_CLEANUP_INTERVAL", 6*time.Hour),
	}

	if cfg.Platform.BaseURL == "" {
		return nil, fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	switch cfg.PushTransport {
	case TransportRabbitMQ:
	case TransportWebSocket:
		if cfg.Platform.WSURL == "" {
			return nil, fmt.Errorf("PLATFORM_WS_URL is required when PUSH_TRANSPORT=websocket")
		}
	default:
		return nil, fmt.Errorf("unknown PUSH_TRANSPORT %q", cfg.PushTransport)
	}
	return cfg, nil
}

// getEnv gets environment variable with fallback default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("500ms", "10s") or plain milliseconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
