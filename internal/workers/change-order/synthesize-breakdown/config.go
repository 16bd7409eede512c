// internal/workers/change-order/synthesize-breakdown/config.go
package synthesizebreakdown

import (
	"time"

	"change-order-generator/internal/common/config"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// JSONMode requests response_format json_object. Ignored for models
	// that reject it.
	JSONMode bool
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o",
		Timeout:     60 * time.Second,
		MaxTokens:   4000,
		Temperature: 0.7,
		JSONMode:    true,
	}
}

// ConfigFrom maps the application configuration onto the synthesizer.
func ConfigFrom(cfg *config.Config) *Config {
	c := LoadConfig()
	c.BaseURL = cfg.Reasoning.BaseURL
	c.APIKey = cfg.Reasoning.APIKey
	c.Model = cfg.Reasoning.Model
	c.MaxTokens = cfg.Reasoning.MaxTokens
	c.Temperature = cfg.Reasoning.Temperature
	c.JSONMode = cfg.Reasoning.JSONMode
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
