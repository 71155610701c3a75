// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Store         StoreConfig             `mapstructure:"store"`
	Render        RenderConfig            `mapstructure:"render"`
	Readiness     ReadinessConfig         `mapstructure:"readiness"`
	Composer      ComposerConfig          `mapstructure:"composer"`
	Monitor       MonitorConfig           `mapstructure:"monitor"`
	Retry         RetryConfig             `mapstructure:"retry"`
	Orchestrator  OrchestratorConfig      `mapstructure:"orchestrator"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Audit         AuditConfig             `mapstructure:"audit"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Render pipeline ---

// StoreConfig selects the record store backend: "redis" or "postgres".
type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Table     string `mapstructure:"table"`
}

type RenderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	Resolution string `mapstructure:"resolution"`
	Quality    string `mapstructure:"quality"`
}

type ReadinessConfig struct {
	PlatformFields []string `mapstructure:"platform_fields"`
	SEOFields      []string `mapstructure:"seo_fields"`
}

// ComposerConfig holds fixed scene durations in seconds.
type ComposerConfig struct {
	IntroSeconds  int `mapstructure:"intro_seconds"`
	ItemSeconds   int `mapstructure:"item_seconds"`
	OutroSeconds  int `mapstructure:"outro_seconds"`
	ItemCount     int `mapstructure:"item_count"`
	TargetSeconds int `mapstructure:"target_seconds"`
}

type MonitorConfig struct {
	InitialDelay int `mapstructure:"initial_delay"` // milliseconds
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	PollJitter   int `mapstructure:"poll_jitter"`   // milliseconds
	MaxPolls     int `mapstructure:"max_polls"`
	Ceiling      int `mapstructure:"ceiling"` // milliseconds
}

// RetryConfig keys MaxAttempts by category name, e.g. "quota" or "network".
type RetryConfig struct {
	MaxAttempts    map[string]int `mapstructure:"max_attempts"`
	BaseDelay      int            `mapstructure:"base_delay"` // milliseconds
	MaxDelay       int            `mapstructure:"max_delay"`  // milliseconds
	JitterFraction float64        `mapstructure:"jitter_fraction"`
}

type OrchestratorConfig struct {
	BatchParallelism int `mapstructure:"batch_parallelism"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds escalation settings for failed renders.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"email"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
