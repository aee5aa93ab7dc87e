package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App         AppConfig
	Paths       PathsConfig
	Database    DatabaseConfig
	Webhook     WebhookConfig
	Cloud       CloudConfig
	Gate        GateConfig
	Integration IntegrationConfig
	AMQP        AMQPConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	Storages string
	Media    string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type WebhookConfig struct {
	// VerifyToken is echoed back during Meta's GET verification handshake.
	VerifyToken string
}

type CloudConfig struct {
	GraphBaseURL  string
	GraphVersion  string
	MediaTimeout  time.Duration
	SendTimeout   time.Duration
	MediaMaxBytes int64
}

type GateConfig struct {
	Workers   int
	QueueSize int
}

type IntegrationConfig struct {
	Timeout time.Duration
}

type AMQPConfig struct {
	URL   string
	Queue string
}

// Global provides access to the loaded configuration globally (Migration Helper)
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	debug := getEnvBool("APP_DEBUG", false)

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.2.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		Storages: getEnv("APP_BASE_DIR", "storages"),
		Media:    getEnv("PATH_MEDIA", filepath.Join("storages", "media")),
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "desk.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azdesk:"),
	}

	cfg := &Config{
		App:      appCfg,
		Paths:    pathsCfg,
		Database: dbCfg,
		Webhook: WebhookConfig{
			VerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", "azdesk_webhook_token"),
		},
		Cloud: CloudConfig{
			GraphBaseURL:  getEnv("GRAPH_BASE_URL", "https://graph.facebook.com"),
			GraphVersion:  getEnv("GRAPH_API_VERSION", "v20.0"),
			MediaTimeout:  time.Duration(getEnvInt("CLOUD_MEDIA_TIMEOUT_SECONDS", 30)) * time.Second,
			SendTimeout:   time.Duration(getEnvInt("CLOUD_SEND_TIMEOUT_SECONDS", 20)) * time.Second,
			MediaMaxBytes: getEnvInt64("CLOUD_MEDIA_MAX_BYTES", 50000000),
		},
		Gate: GateConfig{
			Workers:   getEnvInt("GATE_WORKERS", 20),
			QueueSize: getEnvInt("GATE_QUEUE_SIZE", 1000),
		},
		Integration: IntegrationConfig{
			Timeout: time.Duration(getEnvInt("INTEGRATION_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		AMQP: AMQPConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("AMQP_QUEUE", "desk_events"),
		},
	}

	Global = cfg
	return cfg, nil
}
