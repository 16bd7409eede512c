// internal/workers/change-order/validate-breakdown/config.go
package validatebreakdown

import "change-order-generator/internal/common/config"

type Config struct {
	// RejectInvalidItems fails the whole breakdown on the first bad item
	// instead of dropping it.
	RejectInvalidItems bool
}

func LoadConfig() *Config {
	return &Config{}
}

func ConfigFrom(cfg *config.Config) *Config {
	return &Config{RejectInvalidItems: cfg.Validation.RejectInvalidItems}
}
