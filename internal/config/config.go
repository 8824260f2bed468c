package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath dipakai kalau CONFIG_PATH kosong
const DefaultPath = "config.yaml"

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server struct {
		Port        int               `yaml:"port"`
		APIKeys     map[string]string `yaml:"apiKeys"`
		CORSOrigins []string          `yaml:"corsOrigins"`
		RateLimit   struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | "" (no run ledger)
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Storage struct {
		Backend string `yaml:"backend"` // s3 | minio
	} `yaml:"storage"`

	Minio struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AWS struct {
		Region string `yaml:"region"`
	} `yaml:"aws"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Pipeline struct {
		OutputBucket     string        `yaml:"outputBucket"`
		OutputPrefix     string        `yaml:"outputPrefix"`
		MaxDocumentBytes int64         `yaml:"maxDocumentBytes"`
		ResultLinkTTL    time.Duration `yaml:"resultLinkTTL"`
		ReserveBudget    time.Duration `yaml:"reserveBudget"`
	} `yaml:"pipeline"`

	Extraction struct {
		SyncMaxBytes    int64         `yaml:"syncMaxBytes"`
		SyncMaxPages    int           `yaml:"syncMaxPages"`
		PollInterval    time.Duration `yaml:"pollInterval"`
		PollMaxInterval time.Duration `yaml:"pollMaxInterval"`
		MaxWait         time.Duration `yaml:"maxWait"`
		MaxAttempts     int           `yaml:"maxAttempts"`
		Budget          time.Duration `yaml:"budget"`
	} `yaml:"extraction"`

	Analysis struct {
		Provider          string        `yaml:"provider"` // bedrock | openai
		BedrockModelID    string        `yaml:"bedrockModelId"`
		OpenAIModel       string        `yaml:"openaiModel"`
		OpenAIAPIKey      string        `yaml:"openaiApiKey"`
		MaxInputChars     int           `yaml:"maxInputChars"`
		MaxTokens         int           `yaml:"maxTokens"`
		Temperature       float32       `yaml:"temperature"`
		RepromptOnInvalid bool          `yaml:"repromptOnInvalid"`
		MaxAttempts       int           `yaml:"maxAttempts"`
		BaseDelay         time.Duration `yaml:"baseDelay"`
		Budget            time.Duration `yaml:"budget"`
	} `yaml:"analysis"`

	Notification struct {
		Stakeholder string `yaml:"stakeholder"`
		Sender      string `yaml:"sender"`
		Alert       string `yaml:"alert"`
	} `yaml:"notification"`
}

// Default returns the built-in settings before file and env overlays.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.RateLimit.Capacity = 20
	c.Server.RateLimit.RefillRate = 1
	c.Storage.Backend = "s3"
	c.AWS.Region = "us-east-1"
	c.Log.Level = "INFO"
	c.Log.Format = "json"

	c.Pipeline.MaxDocumentBytes = 50 << 20
	c.Pipeline.ReserveBudget = 20 * time.Second

	c.Extraction.SyncMaxBytes = 5 << 20
	c.Extraction.SyncMaxPages = 1
	c.Extraction.PollInterval = 2 * time.Second
	c.Extraction.PollMaxInterval = 15 * time.Second
	c.Extraction.MaxWait = 5 * time.Minute
	c.Extraction.MaxAttempts = 3
	c.Extraction.Budget = 6 * time.Minute

	c.Analysis.Provider = "bedrock"
	c.Analysis.BedrockModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	c.Analysis.OpenAIModel = "gpt-4o-mini"
	c.Analysis.MaxInputChars = 100000
	c.Analysis.MaxTokens = 4096
	c.Analysis.Temperature = 0.2
	c.Analysis.MaxAttempts = 3
	c.Analysis.BaseDelay = time.Second
	c.Analysis.Budget = 3 * time.Minute
	return &c
}

// ResolvePath returns CONFIG_PATH, or DefaultPath when that file exists, or "".
func ResolvePath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Load baca file config.yaml (kalau ada) lalu timpa dengan environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)

	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Minio.Endpoint)
	c.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Minio.AccessKey)
	c.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Minio.SecretKey)
	c.Minio.Region = getEnv("MINIO_REGION", c.Minio.Region)
	c.Minio.UseSSL = getEnvAsBool("MINIO_USE_SSL", c.Minio.UseSSL)
	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Pipeline.OutputBucket = getEnv("OUTPUT_BUCKET", c.Pipeline.OutputBucket)
	c.Pipeline.OutputPrefix = getEnv("OUTPUT_PREFIX", c.Pipeline.OutputPrefix)
	c.Pipeline.MaxDocumentBytes = getEnvAsInt64("MAX_DOCUMENT_BYTES", c.Pipeline.MaxDocumentBytes)
	c.Pipeline.ResultLinkTTL = getEnvAsDuration("RESULT_LINK_TTL", c.Pipeline.ResultLinkTTL)
	c.Pipeline.ReserveBudget = getEnvAsDuration("RESERVE_BUDGET", c.Pipeline.ReserveBudget)

	c.Extraction.SyncMaxBytes = getEnvAsInt64("SYNC_MAX_BYTES", c.Extraction.SyncMaxBytes)
	c.Extraction.SyncMaxPages = getEnvAsInt("SYNC_MAX_PAGES", c.Extraction.SyncMaxPages)
	c.Extraction.PollInterval = getEnvAsDuration("POLL_INTERVAL", c.Extraction.PollInterval)
	c.Extraction.PollMaxInterval = getEnvAsDuration("POLL_MAX_INTERVAL", c.Extraction.PollMaxInterval)
	c.Extraction.MaxWait = getEnvAsDuration("EXTRACTION_MAX_WAIT", c.Extraction.MaxWait)
	c.Extraction.MaxAttempts = getEnvAsInt("EXTRACTION_MAX_ATTEMPTS", c.Extraction.MaxAttempts)
	c.Extraction.Budget = getEnvAsDuration("EXTRACTION_BUDGET", c.Extraction.Budget)

	c.Analysis.Provider = getEnv("MODEL_PROVIDER", c.Analysis.Provider)
	c.Analysis.BedrockModelID = getEnv("BEDROCK_MODEL_ID", c.Analysis.BedrockModelID)
	c.Analysis.OpenAIModel = getEnv("OPENAI_MODEL", c.Analysis.OpenAIModel)
	c.Analysis.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Analysis.OpenAIAPIKey)
	c.Analysis.MaxInputChars = getEnvAsInt("MAX_INPUT_CHARS", c.Analysis.MaxInputChars)
	c.Analysis.MaxTokens = getEnvAsInt("MODEL_MAX_TOKENS", c.Analysis.MaxTokens)
	c.Analysis.Temperature = getEnvAsFloat32("MODEL_TEMPERATURE", c.Analysis.Temperature)
	c.Analysis.RepromptOnInvalid = getEnvAsBool("REPROMPT_ON_INVALID", c.Analysis.RepromptOnInvalid)
	c.Analysis.MaxAttempts = getEnvAsInt("MODEL_MAX_ATTEMPTS", c.Analysis.MaxAttempts)
	c.Analysis.BaseDelay = getEnvAsDuration("MODEL_RETRY_BASE_DELAY", c.Analysis.BaseDelay)
	c.Analysis.Budget = getEnvAsDuration("ANALYSIS_BUDGET", c.Analysis.Budget)

	c.Notification.Stakeholder = getEnv("STAKEHOLDER_EMAIL", c.Notification.Stakeholder)
	c.Notification.Sender = getEnv("SENDER_EMAIL", c.Notification.Sender)
	c.Notification.Alert = getEnv("ALERT_EMAIL", c.Notification.Alert)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings a pipeline run depends on.
func (c *Config) Validate() error {
	var problems []string
	switch c.Storage.Backend {
	case "s3":
	case "minio":
		if c.Minio.Endpoint == "" {
			problems = append(problems, "MINIO_ENDPOINT is required for the minio backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Analysis.Provider {
	case "bedrock":
		if c.Analysis.BedrockModelID == "" {
			problems = append(problems, "BEDROCK_MODEL_ID is required")
		}
	case "openai":
		if c.Analysis.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown MODEL_PROVIDER %q", c.Analysis.Provider))
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unknown DATABASE_DRIVER %q", c.Database.Driver))
	}
	if c.Notification.Stakeholder == "" {
		problems = append(problems, "STAKEHOLDER_EMAIL is required")
	}
	if c.Notification.Sender == "" {
		problems = append(problems, "SENDER_EMAIL is required")
	}
	if c.Pipeline.MaxDocumentBytes <= 0 {
		problems = append(problems, "MAX_DOCUMENT_BYTES must be positive")
	}
	if c.Extraction.PollInterval <= 0 || c.Extraction.MaxWait <= 0 {
		problems = append(problems, "POLL_INTERVAL and EXTRACTION_MAX_WAIT must be positive")
	}
	if c.Analysis.MaxInputChars <= 0 || c.Analysis.MaxTokens <= 0 {
		problems = append(problems, "MAX_INPUT_CHARS and MODEL_MAX_TOKENS must be positive")
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 1 {
		problems = append(problems, "MODEL_TEMPERATURE must be within [0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DatabaseDSN returns the explicit DSN or one built from the host fields.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Host == "" {
		return ""
	}
	if c.Database.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Masked returns a copy safe to print: secrets are replaced.
func (c *Config) Masked() *Config {
	m := *c
	m.Database.Password = mask(c.Database.Password)
	m.Database.DSN = mask(c.Database.DSN)
	m.Minio.SecretKey = mask(c.Minio.SecretKey)
	m.Analysis.OpenAIAPIKey = mask(c.Analysis.OpenAIAPIKey)
	if len(c.Server.APIKeys) > 0 {
		m.Server.APIKeys = make(map[string]string, len(c.Server.APIKeys))
		for k, v := range c.Server.APIKeys {
			m.Server.APIKeys[k] = mask(v)
		}
	}
	return &m
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
