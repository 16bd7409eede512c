// internal/workers/change-order/render-spreadsheet/markups.go
package renderspreadsheet

import (
	"math"

	"change-order-generator/internal/models"
)

// ohpTier is one band of the general contractor's overhead and profit on
// subcontracted work. Upper is inclusive; the last band is unbounded.
type ohpTier struct {
	Upper float64
	Rate  float64
}

var subcontractorOHPTiers = []ohpTier{
	{Upper: 10000, Rate: 0.10},
	{Upper: 99000, Rate: 0.05},
	{Upper: math.Inf(1), Rate: 0.03},
}

// Markups are the amounts added on top of the direct cost total.
type Markups struct {
	Overhead         float64
	Profit           float64
	SubcontractorOHP float64
	GrandTotal       float64
}

// ComputeMarkups applies overhead and profit to the direct total and, when
// enabled, the tiered OH&P to the subcontractor subtotal.
func ComputeMarkups(b *models.CostBreakdown, cfg MarkupConfig) Markups {
	m := Markups{
		Overhead: b.Total * cfg.OverheadRate,
		Profit:   b.Total * cfg.ProfitRate,
	}
	if cfg.SubcontractorOHP {
		m.SubcontractorOHP = tieredOHP(b.Subtotal(models.CategorySubcontractors))
	}
	m.GrandTotal = b.Total + m.Overhead + m.Profit + m.SubcontractorOHP
	return m
}

func tieredOHP(amount float64) float64 {
	var (
		fee   float64
		lower float64
	)
	for _, tier := range subcontractorOHPTiers {
		if amount <= lower {
			break
		}
		band := math.Min(amount, tier.Upper) - lower
		fee += band * tier.Rate
		lower = tier.Upper
	}
	return fee
}
