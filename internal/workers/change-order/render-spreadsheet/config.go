// internal/workers/change-order/render-spreadsheet/config.go
package renderspreadsheet

import (
	"change-order-generator/internal/common/config"
)

type Config struct {
	SheetName      string
	DefaultTitle   string
	CurrencyFormat string
	Markups        MarkupConfig
}

type MarkupConfig struct {
	Enabled          bool
	OverheadRate     float64
	ProfitRate       float64
	SubcontractorOHP bool
}

func LoadConfig() *Config {
	return &Config{
		SheetName:      "Change Order",
		DefaultTitle:   "Change Order",
		CurrencyFormat: `"US$ "#,##0.00`,
		Markups: MarkupConfig{
			OverheadRate:     0.10,
			ProfitRate:       0.10,
			SubcontractorOHP: true,
		},
	}
}

func ConfigFrom(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg.Render.SheetName != "" {
		c.SheetName = cfg.Render.SheetName
	}
	if cfg.Render.DefaultTitle != "" {
		c.DefaultTitle = cfg.Render.DefaultTitle
	}
	if cfg.Render.CurrencyFormat != "" {
		c.CurrencyFormat = cfg.Render.CurrencyFormat
	}
	c.Markups = MarkupConfig{
		Enabled:          cfg.Render.Markups.Enabled,
		OverheadRate:     cfg.Render.Markups.OverheadRate,
		ProfitRate:       cfg.Render.Markups.ProfitRate,
		SubcontractorOHP: cfg.Render.Markups.SubcontractorOHP,
	}
	return c
}
