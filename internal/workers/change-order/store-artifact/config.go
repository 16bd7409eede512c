// internal/workers/change-order/store-artifact/config.go
package storeartifact

import (
	"time"

	"change-order-generator/internal/common/config"
	"change-order-generator/internal/models"
)

type Config struct {
	Prefix      string
	Public      bool
	ContentType string
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Prefix:      "change_orders",
		Public:      true,
		ContentType: models.MimeTypeXLSX,
		Timeout:     30 * time.Second,
	}
}

func ConfigFrom(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg.Storage.Prefix != "" {
		c.Prefix = cfg.Storage.Prefix
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
