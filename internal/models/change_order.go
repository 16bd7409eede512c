// internal/models/change_order.go
package models

import "math"

// Category is one of the five cost sections of a change order.
type Category string

const (
	CategoryMaterials           Category = "materials"
	CategoryEquipment           Category = "equipment"
	CategoryLabor               Category = "labor"
	CategorySubcontractors      Category = "subcontractors"
	CategoryGeneralRequirements Category = "general_requirements"
)

// Categories lists every category in render order.
var Categories = []Category{
	CategoryMaterials,
	CategoryEquipment,
	CategoryLabor,
	CategorySubcontractors,
	CategoryGeneralRequirements,
}

// Label is the section heading used in the spreadsheet.
func (c Category) Label() string {
	switch c {
	case CategoryMaterials:
		return "Materials"
	case CategoryEquipment:
		return "Equipment"
	case CategoryLabor:
		return "Labor"
	case CategorySubcontractors:
		return "Subcontractors"
	case CategoryGeneralRequirements:
		return "General Requirements"
	default:
		return string(c)
	}
}

type LineItem struct {
	Description  string  `json:"description"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	UnitCost     float64 `json:"unitCost"`
	ExtendedCost float64 `json:"extendedCost"`
}

// CostBreakdown is a validated change order. Total and every ExtendedCost are
// derived; call Recompute after editing items.
type CostBreakdown struct {
	Title               string     `json:"title,omitempty"`
	Summary             string     `json:"summary,omitempty"`
	Materials           []LineItem `json:"materials"`
	Equipment           []LineItem `json:"equipment"`
	Labor               []LineItem `json:"labor"`
	Subcontractors      []LineItem `json:"subcontractors"`
	GeneralRequirements []LineItem `json:"generalRequirements"`
	Total               float64    `json:"total"`
}

// Items returns the item list of one category.
func (b *CostBreakdown) Items(c Category) []LineItem {
	switch c {
	case CategoryMaterials:
		return b.Materials
	case CategoryEquipment:
		return b.Equipment
	case CategoryLabor:
		return b.Labor
	case CategorySubcontractors:
		return b.Subcontractors
	case CategoryGeneralRequirements:
		return b.GeneralRequirements
	default:
		return nil
	}
}

// SetItems replaces the item list of one category.
func (b *CostBreakdown) SetItems(c Category, items []LineItem) {
	switch c {
	case CategoryMaterials:
		b.Materials = items
	case CategoryEquipment:
		b.Equipment = items
	case CategoryLabor:
		b.Labor = items
	case CategorySubcontractors:
		b.Subcontractors = items
	case CategoryGeneralRequirements:
		b.GeneralRequirements = items
	}
}

// Subtotal sums the extended costs of one category.
func (b *CostBreakdown) Subtotal(c Category) float64 {
	var sum float64
	for _, item := range b.Items(c) {
		sum += item.ExtendedCost
	}
	return sum
}

// LineItemCount counts items across all categories.
func (b *CostBreakdown) LineItemCount() int {
	n := 0
	for _, c := range Categories {
		n += len(b.Items(c))
	}
	return n
}

// Recompute derives every ExtendedCost and the Total from quantities and
// unit costs, in category order.
func (b *CostBreakdown) Recompute() {
	var total float64
	for _, c := range Categories {
		items := b.Items(c)
		for i := range items {
			items[i].ExtendedCost = items[i].Quantity * items[i].UnitCost
			total += items[i].ExtendedCost
		}
	}
	b.Total = total
}

// Finite reports whether every amount and the total are finite numbers.
func (b *CostBreakdown) Finite() bool {
	if !isFinite(b.Total) {
		return false
	}
	for _, c := range Categories {
		for _, item := range b.Items(c) {
			if !isFinite(item.Quantity) || !isFinite(item.UnitCost) || !isFinite(item.ExtendedCost) {
				return false
			}
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// GeneratedArtifact is a stored spreadsheet.
type GeneratedArtifact struct {
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	Content     []byte `json:"-"`
	DownloadURL string `json:"downloadUrl"`
	SizeBytes   int    `json:"sizeBytes"`
}
