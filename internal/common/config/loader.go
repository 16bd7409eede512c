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
)

// Stage names used as keys under `workers`.
const (
	StageExtract    = "extract-content"
	StageSynthesize = "synthesize-breakdown"
	StageValidate   = "validate-breakdown"
	StageRender     = "render-spreadsheet"
	StageStore      = "store-artifact"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

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
	_ = v.MergeInConfig() // optional

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
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

// loadEnvFile loads the first .env found walking up from the working dir.
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

// setDefaults registers every key with viper so AutomaticEnv can override
// keys that never appear in a file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "change-order-api")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30000)
	v.SetDefault("server.write_timeout", 120000)
	v.SetDefault("server.shutdown_timeout", 30000)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("reasoning.base_url", "https://api.openai.com/v1")
	v.SetDefault("reasoning.api_key", "")
	v.SetDefault("reasoning.model", "gpt-4o")
	v.SetDefault("reasoning.json_mode", true)
	v.SetDefault("reasoning.temperature", 0.7)
	v.SetDefault("reasoning.max_tokens", 4000)
	v.SetDefault("reasoning.timeout", 60000)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.prefix", "change_orders")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.public_acl", true)
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.timeout", 30000)

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", 60000)

	v.SetDefault("extraction.temp_dir", "")
	v.SetDefault("extraction.max_pages", 0)
	v.SetDefault("extraction.page_separator", "\n\n")

	v.SetDefault("validation.reject_invalid_items", false)

	v.SetDefault("render.sheet_name", "Change Order")
	v.SetDefault("render.default_title", "Change Order")
	v.SetDefault("render.currency_format", `"US$ "#,##0.00`)
	v.SetDefault("render.markups.enabled", false)
	v.SetDefault("render.markups.overhead_rate", 0.10)
	v.SetDefault("render.markups.profit_rate", 0.10)
	v.SetDefault("render.markups.subcontractor_ohp", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// expandEnvVars replaces ${VAR} placeholders in string values.
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

// overrideEmptyConfig fills secrets from the conventional variable names the
// deployment already exports.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Reasoning.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.Reasoning.APIKey = val
		}
	}

	if cfg.Storage.Bucket == "" {
		for _, name := range []string{"STORAGE_BUCKET", "FIREBASE_STORAGE_BUCKET"} {
			if val := os.Getenv(name); val != "" {
				cfg.Storage.Bucket = val
				break
			}
		}
	}
	if cfg.Storage.AccessKeyID == "" {
		if val := os.Getenv("AWS_ACCESS_KEY_ID"); val != "" {
			cfg.Storage.AccessKeyID = val
		}
	}
	if cfg.Storage.SecretAccessKey == "" {
		if val := os.Getenv("AWS_SECRET_ACCESS_KEY"); val != "" {
			cfg.Storage.SecretAccessKey = val
		}
	}

	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
}

// applyDefaults covers values a file can zero out explicitly.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 20 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Reasoning.Timeout == 0 {
		cfg.Reasoning.Timeout = 60000
	}
	if cfg.Reasoning.MaxTokens == 0 {
		cfg.Reasoning.MaxTokens = 4000
	}
	if cfg.Reasoning.Model == "" {
		cfg.Reasoning.Model = "gpt-4o"
	}

	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "change_orders"
	}
	cfg.Storage.Prefix = strings.Trim(cfg.Storage.Prefix, "/")
	cfg.Storage.Endpoint = strings.TrimRight(cfg.Storage.Endpoint, "/")
	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")
	if cfg.Storage.Timeout == 0 {
		cfg.Storage.Timeout = 30000
	}

	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = 60000
	}

	if cfg.Extraction.PageSeparator == "" {
		cfg.Extraction.PageSeparator = "\n\n"
	}

	if cfg.Render.SheetName == "" {
		cfg.Render.SheetName = "Change Order"
	}
	if cfg.Render.DefaultTitle == "" {
		cfg.Render.DefaultTitle = "Change Order"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.Timeout == 0 {
			worker.Timeout = defaultStageTimeout(key, cfg)
		}
		cfg.Workers[key] = worker
	}
}

func defaultStageTimeout(stage string, cfg *Config) int {
	switch stage {
	case StageSynthesize:
		return cfg.Reasoning.Timeout
	case StageStore:
		return cfg.Storage.Timeout
	default:
		return 30000
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning.api_key is required (or OPENAI_API_KEY)")
	}
	if cfg.Reasoning.BaseURL == "" {
		return fmt.Errorf("reasoning.base_url is required")
	}
	if cfg.Reasoning.Temperature < 0 || cfg.Reasoning.Temperature > 2 {
		return fmt.Errorf("reasoning.temperature must be between 0 and 2")
	}

	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required (or STORAGE_BUCKET)")
	}
	if cfg.Storage.Region == "" {
		return fmt.Errorf("storage.region is required")
	}

	if cfg.RateLimit.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when rate_limit.enabled is set")
	}

	if cfg.Render.Markups.OverheadRate < 0 || cfg.Render.Markups.ProfitRate < 0 {
		return fmt.Errorf("render.markups rates must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves stage-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, stage string) WorkerConfig {
	if worker, exists := cfg.Workers[stage]; exists {
		return worker
	}

	return WorkerConfig{
		Timeout: defaultStageTimeout(stage, cfg),
	}
}
