package config

import (
	"fmt"
	"strings"
	"time"

	"surveysync/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Log      LogConfig
	Tracing  TracingConfig
	Platform PlatformConfig
	Storage  StorageConfig
	// Attachments selects a separate attachment destination. An empty type
	// means attachments go to the primary storage.
	Attachments StorageConfig `envconfig:"ATTACHMENT_STORAGE"`
	Cache       CacheConfig
	Sync        SyncConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"surveysync"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Debug       bool     `envconfig:"APP_DEBUG" default:"false"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     []string `envconfig:"API_KEYS"` // comma separated; empty disables auth
}

// LogConfig holds log output settings. Rotation applies only when File is set.
type LogConfig struct {
	File       string `envconfig:"LOG_FILE" default:""`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
	Compress   bool   `envconfig:"LOG_COMPRESS" default:"true"`
}

// TracingConfig holds OpenTelemetry export settings. An empty endpoint
// disables export.
type TracingConfig struct {
	Endpoint   string  `envconfig:"TRACING_ENDPOINT" default:""` // OTLP/HTTP traces URL
	SampleRate float64 `envconfig:"TRACING_SAMPLE_RATE" default:"1"`
}

// PlatformConfig holds ODK Central connection settings.
type PlatformConfig struct {
	BaseURL   string        `envconfig:"ODK_BASE_URL" default:""`
	Username  string        `envconfig:"ODK_USERNAME" default:""`
	Password  string        `envconfig:"ODK_PASSWORD" default:""`
	ProjectID int           `envconfig:"ODK_PROJECT_ID" default:"0"`
	FormID    string        `envconfig:"ODK_FORM_ID" default:""`
	Timeout   time.Duration `envconfig:"ODK_TIMEOUT" default:"60s"`
	PageSize  int           `envconfig:"ODK_PAGE_SIZE" default:"0"` // 0 fetches everything in one response
}

// StorageConfig selects and configures a storage backend. It is read twice,
// once under STORAGE_ and once under ATTACHMENT_STORAGE_, so its fields carry
// no absolute env names.
type StorageConfig struct {
	Type          string `split_words:"true"` // file, memory, sqlite, postgres, mysql, mongodb, redis
	Path          string `split_words:"true" default:"./data"`
	Namespace     string `split_words:"true" default:"submissions"`
	DSN           string
	MongoURI      string `split_words:"true"`
	MongoDatabase string `split_words:"true" default:"surveysync"`
	RedisAddr     string `split_words:"true" default:"localhost:6379"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `split_words:"true" default:"0"`
}

// CacheConfig holds presence cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"none"` // none, memory, redis, memcached
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	MemcachedServers []string `envconfig:"MEMCACHED_SERVERS" default:"localhost:11211"`
}

// SyncConfig holds sync cycle settings.
type SyncConfig struct {
	Interval        time.Duration `envconfig:"SYNC_INTERVAL" default:"15m"` // 0 disables scheduled runs
	Timeout         time.Duration `envconfig:"SYNC_TIMEOUT" default:"30m"`
	NoAttachments   bool          `envconfig:"SYNC_NO_ATTACHMENTS" default:"false"`
	IncludeRejected bool          `envconfig:"SYNC_INCLUDE_REJECTED" default:"false"`
	OnStart         bool          `envconfig:"SYNC_ON_START" default:"true"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Validate reports missing connection or form identifiers.
func (p *PlatformConfig) Validate() error {
	var missing []string
	if p.BaseURL == "" {
		missing = append(missing, "ODK_BASE_URL")
	}
	if p.ProjectID <= 0 {
		missing = append(missing, "ODK_PROJECT_ID")
	}
	if p.FormID == "" {
		missing = append(missing, "ODK_FORM_ID")
	}
	if len(missing) > 0 {
		return &model.ConfigurationError{Reason: "missing " + strings.Join(missing, ", ")}
	}
	return nil
}

// Enabled reports whether a backend type is set.
func (s *StorageConfig) Enabled() bool {
	return s.Type != ""
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}
