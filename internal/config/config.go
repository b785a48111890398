package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LISTFLOW_TABLE_PREFIX.
const EnvPrefix = "LISTFLOW"

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Log         LogConfig         `yaml:"log" envconfig:"LOG"`
	AWS         AWSConfig         `yaml:"aws" envconfig:"AWS"`
	TablePrefix string            `yaml:"table_prefix" envconfig:"TABLE_PREFIX"`
	Store       string            `yaml:"store" envconfig:"STORE"`
	SES         SESConfig         `yaml:"ses" envconfig:"SES"`
	Public      PublicConfig      `yaml:"public" envconfig:"PUBLIC"`
	Interaction InteractionConfig `yaml:"interaction" envconfig:"INTERACTION"`
	Events      EventsConfig      `yaml:"events" envconfig:"EVENTS"`
	Archive     ArchiveConfig     `yaml:"archive" envconfig:"ARCHIVE"`
	Lease       LeaseConfig       `yaml:"lease" envconfig:"LEASE"`
	Redis       RedisConfig       `yaml:"redis" envconfig:"REDIS"`
	Postgres    PostgresConfig    `yaml:"postgres" envconfig:"POSTGRES"`
	Queue       QueueConfig       `yaml:"queue" envconfig:"QUEUE"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string `yaml:"host" envconfig:"HOST"`
	Port            int    `yaml:"port" envconfig:"PORT"`
	ShutdownSeconds int    `yaml:"shutdown_seconds" envconfig:"SHUTDOWN_SECONDS"`
}

// LogConfig controls the JSON logger.
type LogConfig struct {
	Level         string `yaml:"level" envconfig:"LEVEL"`
	DisableRedact bool   `yaml:"disable_redact" envconfig:"DISABLE_REDACT"`
}

// AWSConfig selects the region and credentials. Endpoint overrides the
// DynamoDB endpoint (local DynamoDB in development).
type AWSConfig struct {
	Region   string `yaml:"region" envconfig:"REGION"`
	Profile  string `yaml:"profile" envconfig:"PROFILE"`
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
}

// SESConfig holds sender settings.
type SESConfig struct {
	SourceEmail          string `yaml:"source_email" envconfig:"SOURCE_EMAIL"`
	ConfigurationSet     string `yaml:"configuration_set" envconfig:"CONFIGURATION_SET"`
	ConfirmationTemplate string `yaml:"confirmation_template" envconfig:"CONFIRMATION_TEMPLATE"`
	BreakerFailures      uint32 `yaml:"breaker_failures" envconfig:"BREAKER_FAILURES"`
	BreakerTimeoutSecs   int    `yaml:"breaker_timeout_seconds" envconfig:"BREAKER_TIMEOUT_SECONDS"`
}

// PublicConfig holds the URLs subscribers are sent to.
type PublicConfig struct {
	APIURL             string `yaml:"api_url" envconfig:"API_URL"`
	ThankYouURL        string `yaml:"thank_you_url" envconfig:"THANK_YOU_URL"`
	UnsubscribePageURL string `yaml:"unsubscribe_page_url" envconfig:"UNSUBSCRIBE_PAGE_URL"`
	DefaultList        string `yaml:"default_list" envconfig:"DEFAULT_LIST"`
	UnsubscribeLink    string `yaml:"unsubscribe_link" envconfig:"UNSUBSCRIBE_LINK"`
}

// InteractionConfig holds correlator settings.
type InteractionConfig struct {
	// AutoConfirmTags is the fallback when the autoConfirmTags setting is unset.
	AutoConfirmTags []string `yaml:"auto_confirm_tags" envconfig:"AUTO_CONFIRM_TAGS"`
}

// EventsConfig holds the SQS consumer settings for SES notifications.
type EventsConfig struct {
	QueueURL          string `yaml:"queue_url" envconfig:"QUEUE_URL"`
	MaxMessages       int32  `yaml:"max_messages" envconfig:"MAX_MESSAGES"`
	WaitSeconds       int32  `yaml:"wait_seconds" envconfig:"WAIT_SECONDS"`
	VisibilitySeconds int32  `yaml:"visibility_seconds" envconfig:"VISIBILITY_SECONDS"`
}

// ArchiveConfig holds the broadcast archive settings. Bucket selects S3,
// LocalPath a directory; with neither set archiving is disabled.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
	LocalPath string `yaml:"local_path" envconfig:"LOCAL_PATH"`
}

// LeaseConfig selects the broadcast lease backend.
type LeaseConfig struct {
	Backend    string `yaml:"backend" envconfig:"BACKEND"`
	Key        string `yaml:"key" envconfig:"KEY"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"TTL_MINUTES"`
	// Embedded runs an in-process Redis for the lease when the memory
	// store is used. Local development only.
	Embedded bool `yaml:"embedded" envconfig:"EMBEDDED"`
}

// TTL returns the lease lifetime.
func (l LeaseConfig) TTL() time.Duration {
	return time.Duration(l.TTLMinutes) * time.Minute
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// PostgresConfig holds the lease database DSN.
type PostgresConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

// QueueConfig bounds batch work against the queue table.
type QueueConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY"`
	BatchSize   int `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

// Store backends for subscribers, queue and settings.
const (
	StoreDynamo = "dynamodb"
	StoreMemory = "memory"
)

// Tables resolves the prefixed table names.
type Tables struct {
	Subscribers string
	Queue       string
	Settings    string
}

// Tables returns the DynamoDB table names for the configured prefix.
func (c *Config) Tables() Tables {
	return Tables{
		Subscribers: c.TablePrefix + "Subscribers",
		Queue:       c.TablePrefix + "Queue",
		Settings:    c.TablePrefix + "Settings",
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads config from file and overlays LISTFLOW_* environment
// variables. A missing file is not an error; defaults and env then decide.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.ShutdownSeconds == 0 {
		c.Server.ShutdownSeconds = 15
	}
	if c.Store == "" {
		c.Store = StoreDynamo
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.SES.ConfirmationTemplate == "" {
		c.SES.ConfirmationTemplate = "Confirmation"
	}
	if c.SES.BreakerFailures == 0 {
		c.SES.BreakerFailures = 5
	}
	if c.SES.BreakerTimeoutSecs == 0 {
		c.SES.BreakerTimeoutSecs = 30
	}
	if c.Events.MaxMessages == 0 {
		c.Events.MaxMessages = 10
	}
	if c.Events.WaitSeconds == 0 {
		c.Events.WaitSeconds = 20
	}
	if c.Events.VisibilitySeconds == 0 {
		c.Events.VisibilitySeconds = 60
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "broadcasts"
	}
	if c.Lease.Backend == "" {
		c.Lease.Backend = "dynamodb"
	}
	if c.Lease.Key == "" {
		c.Lease.Key = "isDoingBroadcast"
	}
	if c.Lease.TTLMinutes == 0 {
		c.Lease.TTLMinutes = 360
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 10
	}
	if c.Queue.BatchSize == 0 || c.Queue.BatchSize > 25 {
		c.Queue.BatchSize = 25
	}
}
