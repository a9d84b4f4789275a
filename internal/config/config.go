package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	AWS      AWSConfig      `yaml:"aws"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Badge    BadgeConfig    `yaml:"badge"`
	Printing PrintingConfig `yaml:"printing"`
	Wizard   WizardConfig   `yaml:"wizard"`
	Redis    RedisConfig    `yaml:"redis"`
	Event    EventConfig    `yaml:"event"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Backend     string `yaml:"backend"` // s3 or local
	LocalPath   string `yaml:"local_path"`
	PhotoBucket string `yaml:"photo_bucket"`
	QRBucket    string `yaml:"qr_bucket"`
	BadgeBucket string `yaml:"badge_bucket"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
}

// OpenAIConfig holds avatar generation configuration
type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Quality string        `yaml:"quality"`
	Timeout time.Duration `yaml:"timeout"`
}

// BadgeConfig holds badge template configuration
type BadgeConfig struct {
	TemplatePath string `yaml:"template_path"`
	Layout       string `yaml:"layout"` // single or dual
}

// PrintingConfig holds print dispatch configuration
type PrintingConfig struct {
	TicketSecret string        `yaml:"ticket_secret"`
	TicketTTL    time.Duration `yaml:"ticket_ttl"`
	PageWidth    string        `yaml:"page_width"`
	PageHeight   string        `yaml:"page_height"`
	Rotate       bool          `yaml:"rotate"`
	RawBT        bool          `yaml:"rawbt"`
}

// WizardConfig holds registration wizard configuration
type WizardConfig struct {
	Store        string        `yaml:"store"` // memory or redis
	SessionTTL   time.Duration `yaml:"session_ttl"`
	PrintingTick time.Duration `yaml:"printing_tick"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventConfig holds event defaults
type EventConfig struct {
	DefaultEventID  string `yaml:"default_event_id"`
	LegacyRefFormat bool   `yaml:"legacy_ref_format"`
	QRSize          int    `yaml:"qr_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a YAML file, then applies .env and environment overrides
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"OPENAI_API_KEY":        &c.OpenAI.APIKey,
		"DATABASE_PASSWORD":     &c.Database.Password,
		"AWS_ACCESS_KEY_ID":     &c.AWS.AccessKey,
		"AWS_SECRET_ACCESS_KEY": &c.AWS.SecretKey,
		"PRINT_TICKET_SECRET":   &c.Printing.TicketSecret,
		"REDIS_PASSWORD":        &c.Redis.Password,
		"PUBLIC_URL":            &c.Server.PublicURL,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./uploads"
	}
	if c.Storage.PhotoBucket == "" {
		c.Storage.PhotoBucket = "photos"
	}
	if c.Storage.QRBucket == "" {
		c.Storage.QRBucket = "qr"
	}
	if c.Storage.BadgeBucket == "" {
		c.Storage.BadgeBucket = "badges"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-image-1"
	}
	if c.OpenAI.Quality == "" {
		c.OpenAI.Quality = "low"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 2 * time.Minute
	}
	if c.Badge.Layout == "" {
		c.Badge.Layout = "single"
	}
	if c.Printing.TicketTTL == 0 {
		c.Printing.TicketTTL = 10 * time.Minute
	}
	if c.Printing.PageWidth == "" {
		c.Printing.PageWidth = "62mm"
	}
	if c.Printing.PageHeight == "" {
		c.Printing.PageHeight = "100mm"
	}
	if c.Wizard.Store == "" {
		c.Wizard.Store = "memory"
	}
	if c.Wizard.SessionTTL == 0 {
		c.Wizard.SessionTTL = 30 * time.Minute
	}
	if c.Wizard.PrintingTick == 0 {
		c.Wizard.PrintingTick = 300 * time.Millisecond
	}
	if c.Wizard.LockTTL == 0 {
		// covers a slow avatar generation under the lock
		c.Wizard.LockTTL = 3 * time.Minute
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Event.DefaultEventID == "" {
		c.Event.DefaultEventID = "00000000-0000-0000-0000-000000000001"
	}
	if c.Event.QRSize == 0 {
		c.Event.QRSize = 512
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks option combinations that cannot work at runtime
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.AWS.Region == "" {
			return fmt.Errorf("aws.region is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	switch c.Wizard.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported wizard store: %s", c.Wizard.Store)
	}
	switch c.Badge.Layout {
	case "single", "dual":
	default:
		return fmt.Errorf("unsupported badge layout: %s", c.Badge.Layout)
	}
	if c.Printing.TicketSecret == "" {
		return fmt.Errorf("printing.ticket_secret is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
