// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "render-workers/internal/common/errors"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory, so tests in nested packages see the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env vars when the files
// leave them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Render.APIKey == "" {
		if val := os.Getenv("RENDER_API_KEY"); val != "" {
			cfg.Render.APIKey = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Notifications.SNS.TopicARN == "" {
		if val := os.Getenv("SNS_TOPIC_ARN"); val != "" {
			cfg.Notifications.SNS.TopicARN = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "render-workers"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Record store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}
	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = "record"
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = "content_records"
	}

	// Render service defaults
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 30000
	}
	if cfg.Render.Resolution == "" {
		cfg.Render.Resolution = "full-hd"
	}
	if cfg.Render.Quality == "" {
		cfg.Render.Quality = "high"
	}

	// Composer defaults; 5 + 5 + 5*9 = 55
	if cfg.Composer.IntroSeconds == 0 {
		cfg.Composer.IntroSeconds = 5
	}
	if cfg.Composer.ItemSeconds == 0 {
		cfg.Composer.ItemSeconds = 9
	}
	if cfg.Composer.OutroSeconds == 0 {
		cfg.Composer.OutroSeconds = 5
	}
	if cfg.Composer.ItemCount == 0 {
		cfg.Composer.ItemCount = 5
	}
	if cfg.Composer.TargetSeconds == 0 {
		cfg.Composer.TargetSeconds = 55
	}

	// Monitor defaults
	if cfg.Monitor.InitialDelay == 0 {
		cfg.Monitor.InitialDelay = 60000
	}
	if cfg.Monitor.PollInterval == 0 {
		cfg.Monitor.PollInterval = 15000
	}
	if cfg.Monitor.PollJitter == 0 {
		cfg.Monitor.PollJitter = 1000
	}
	if cfg.Monitor.MaxPolls == 0 {
		cfg.Monitor.MaxPolls = 40
	}
	if cfg.Monitor.Ceiling == 0 {
		cfg.Monitor.Ceiling = 1200000
	}

	// Retry defaults; per-category budgets default inside the retry package
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 30000
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 300000
	}
	if cfg.Retry.JitterFraction == 0 {
		cfg.Retry.JitterFraction = 0.2
	}

	if cfg.Orchestrator.BatchParallelism == 0 {
		cfg.Orchestrator.BatchParallelism = 4
	}

	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "render-outcomes"
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Store.Backend {
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis store")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres store")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres store")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.backend must be redis or postgres, got %q", cfg.Store.Backend)
	}

	if cfg.Render.BaseURL == "" {
		return fmt.Errorf("render.base_url is required")
	}

	c := cfg.Composer
	if c.IntroSeconds < 0 || c.ItemSeconds <= 0 || c.OutroSeconds < 0 || c.ItemCount <= 0 {
		return fmt.Errorf("composer durations and item_count must be positive")
	}
	if want := c.IntroSeconds + c.OutroSeconds + c.ItemCount*c.ItemSeconds; c.TargetSeconds != want {
		return fmt.Errorf("composer.target_seconds is %d but intro + outro + item_count*item_seconds is %d",
			c.TargetSeconds, want)
	}

	if cfg.Monitor.Ceiling <= cfg.Monitor.InitialDelay {
		return fmt.Errorf("monitor.ceiling must exceed monitor.initial_delay")
	}

	for name, n := range cfg.Retry.MaxAttempts {
		if _, ok := apperrors.ParseCategory(name); !ok {
			return fmt.Errorf("retry.max_attempts: unknown category %q", name)
		}
		if n < 0 {
			return fmt.Errorf("retry.max_attempts.%s must not be negative", name)
		}
	}

	if cfg.Audit.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when audit is enabled")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.Email.Enabled && (cfg.Notifications.Email.FromEmail == "" || len(cfg.Notifications.Email.ToEmails) == 0) {
		return fmt.Errorf("notifications.email.from_email and to_emails are required when email is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
