// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/javajoker/offer-enricher/internal/utils"
)

type Config struct {
	Environment string         `yaml:"environment"`
	Database    DatabaseConfig `yaml:"database"`
	Search      SearchConfig   `yaml:"search"`
	Feed        FeedConfig     `yaml:"feed"`
	Enrich      EnrichConfig   `yaml:"enrich"`
	AWS         AWSConfig      `yaml:"aws"`
	Log         LogConfig      `yaml:"log"`
	Ops         OpsConfig      `yaml:"ops"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host" validate:"required"`
	Port         string `yaml:"port" validate:"required,numeric"`
	User         string `yaml:"user" validate:"required"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database" validate:"required"`
	SSLMode      string `yaml:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Schema       string `yaml:"schema" validate:"required,sql_identifier"`
	Table        string `yaml:"table" validate:"required,sql_identifier"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"min=0"`
	MaxLifetime  int    `yaml:"max_lifetime"`
	LogLevel     string `yaml:"log_level"`
}

type SearchConfig struct {
	Backend      string   `yaml:"backend" validate:"oneof=elastic memory"`
	Addresses    []string `yaml:"addresses" validate:"required_if=Backend elastic,dive,url"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Index        string   `yaml:"index" validate:"required"`
	SimilarCount int      `yaml:"similar_count" validate:"min=1,max=100"`
	BulkWorkers  int      `yaml:"bulk_workers" validate:"min=1"`
	// Consecutive FindSimilar failures before the breaker opens.
	BreakerFailures uint32 `yaml:"breaker_failures"`
	BreakerTimeout  int    `yaml:"breaker_timeout"` // in seconds
}

type FeedConfig struct {
	Location         string `yaml:"location"`
	BatchSize        int    `yaml:"batch_size" validate:"min=1"`
	NormalizeWorkers int    `yaml:"normalize_workers" validate:"min=1"`
}

type EnrichConfig struct {
	PageSize int     `yaml:"page_size" validate:"min=1"`
	Workers  int     `yaml:"workers" validate:"min=1"`
	RPS      float64 `yaml:"rps" validate:"min=0"` // 0 disables pacing
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type OpsConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// ETL_CONFIG_FILE and finally the environment (a .env file is honoured).
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := defaultConfig()
	if path := os.Getenv("ETL_CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}
	applyEnv(config)

	return config, config.Validate()
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			Database:     "parser",
			SSLMode:      "disable",
			Schema:       "public",
			Table:        "offers",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
			LogLevel:     "silent",
		},
		Search: SearchConfig{
			Backend:         "elastic",
			Addresses:       []string{"http://localhost:9200"},
			Username:        "elastic",
			Index:           "offers",
			SimilarCount:    5,
			BulkWorkers:     2,
			BreakerFailures: 20,
			BreakerTimeout:  30,
		},
		Feed: FeedConfig{
			BatchSize:        1000,
			NormalizeWorkers: 4,
		},
		Enrich: EnrichConfig{
			PageSize: 1000,
			Workers:  8,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides any field whose variable is set. The current value acts
// as the default, so file values survive unset variables.
func applyEnv(c *Config) {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.Schema = getEnv("DB_SCHEMA", c.Database.Schema)
	c.Database.Table = getEnv("DB_TABLE", c.Database.Table)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxLifetime = getEnvAsInt("DB_MAX_LIFETIME", c.Database.MaxLifetime)
	c.Database.LogLevel = getEnv("DB_LOG_LEVEL", c.Database.LogLevel)

	c.Search.Backend = getEnv("SEARCH_BACKEND", c.Search.Backend)
	c.Search.Addresses = getEnvAsList("ELASTIC_ADDRESSES", c.Search.Addresses)
	c.Search.Username = getEnv("ELASTIC_USERNAME", c.Search.Username)
	c.Search.Password = getEnv("ELASTIC_PASSWORD", c.Search.Password)
	c.Search.Index = getEnv("ELASTIC_INDEX", c.Search.Index)
	c.Search.SimilarCount = getEnvAsInt("SIMILAR_COUNT", c.Search.SimilarCount)
	c.Search.BulkWorkers = getEnvAsInt("ELASTIC_BULK_WORKERS", c.Search.BulkWorkers)
	c.Search.BreakerFailures = uint32(getEnvAsInt("SEARCH_BREAKER_FAILURES", int(c.Search.BreakerFailures)))
	c.Search.BreakerTimeout = getEnvAsInt("SEARCH_BREAKER_TIMEOUT", c.Search.BreakerTimeout)

	c.Feed.Location = getEnv("FEED_LOCATION", c.Feed.Location)
	c.Feed.BatchSize = getEnvAsInt("BATCH_SIZE", c.Feed.BatchSize)
	c.Feed.NormalizeWorkers = getEnvAsInt("NORMALIZE_WORKERS", c.Feed.NormalizeWorkers)

	c.Enrich.PageSize = getEnvAsInt("ENRICH_PAGE_SIZE", c.Enrich.PageSize)
	c.Enrich.Workers = getEnvAsInt("ENRICH_WORKERS", c.Enrich.Workers)
	c.Enrich.RPS = getEnvAsFloat("ENRICH_RPS", c.Enrich.RPS)

	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.AWS.AccessKeyID)
	c.AWS.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.AWS.SecretAccessKey)

	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))

	c.Ops.MetricsAddr = getEnv("METRICS_ADDR", c.Ops.MetricsAddr)
}

func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Search.Backend == "elastic" && len(c.Search.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address is required")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
