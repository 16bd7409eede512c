// internal/workers/change-order/extract-content/config.go
package extractcontent

import (
	"time"

	"change-order-generator/internal/common/config"
)

type Config struct {
	TempDir       string // empty means os.TempDir()
	MaxPages      int    // 0 means every page
	PageSeparator string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		PageSeparator: "\n\n",
		Timeout:       30 * time.Second,
	}
}

// ConfigFrom maps the application configuration onto the extractor.
func ConfigFrom(cfg *config.Config) *Config {
	c := LoadConfig()
	c.TempDir = cfg.Extraction.TempDir
	c.MaxPages = cfg.Extraction.MaxPages
	if cfg.Extraction.PageSeparator != "" {
		c.PageSeparator = cfg.Extraction.PageSeparator
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
