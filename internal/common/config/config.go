// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Server     ServerConfig            `mapstructure:"server"`
	Reasoning  ReasoningConfig         `mapstructure:"reasoning"`
	Storage    StorageConfig           `mapstructure:"storage"`
	Database   DatabaseConfig          `mapstructure:"database"`
	RateLimit  RateLimitConfig         `mapstructure:"rate_limit"`
	Extraction ExtractionConfig        `mapstructure:"extraction"`
	Validation ValidationConfig        `mapstructure:"validation"`
	Render     RenderConfig            `mapstructure:"render"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int   `mapstructure:"port"`
	ReadTimeout     int   `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int   `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int   `mapstructure:"shutdown_timeout"` // milliseconds
	MaxUploadBytes  int64 `mapstructure:"max_upload_bytes"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ReasoningConfig points at an OpenAI-compatible chat completion endpoint.
type ReasoningConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	JSONMode    bool    `mapstructure:"json_mode"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// StorageConfig describes an S3-compatible bucket. Setting Endpoint to
// https://storage.googleapis.com uses the GCS interoperability API.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	PublicACL       bool   `mapstructure:"public_acl"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
}

// ObjectURLBase returns the base URL that public objects resolve under.
func (s StorageConfig) ObjectURLBase() string {
	switch {
	case s.PublicBaseURL != "":
		return s.PublicBaseURL
	case s.Endpoint != "":
		return fmt.Sprintf("%s/%s", s.Endpoint, s.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.Bucket, s.Region)
	}
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig caps requests per client in a fixed window. Requires Redis.
type RateLimitConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Requests int  `mapstructure:"requests"`
	Window   int  `mapstructure:"window"` // milliseconds
}

type ExtractionConfig struct {
	TempDir       string `mapstructure:"temp_dir"`
	MaxPages      int    `mapstructure:"max_pages"`
	PageSeparator string `mapstructure:"page_separator"`
}

type ValidationConfig struct {
	RejectInvalidItems bool `mapstructure:"reject_invalid_items"`
}

// RenderConfig holds the spreadsheet layout settings.
type RenderConfig struct {
	SheetName      string        `mapstructure:"sheet_name"`
	DefaultTitle   string        `mapstructure:"default_title"`
	CurrencyFormat string        `mapstructure:"currency_format"`
	Markups        MarkupsConfig `mapstructure:"markups"`
}

// MarkupsConfig enables the overhead/profit block under the total.
type MarkupsConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	OverheadRate     float64 `mapstructure:"overhead_rate"`
	ProfitRate       float64 `mapstructure:"profit_rate"`
	SubcontractorOHP bool    `mapstructure:"subcontractor_ohp"`
}

// WorkerConfig holds the settings applicable to every pipeline stage.
type WorkerConfig struct {
	Timeout int `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
