// internal/workers/change-order/validate-breakdown/handler.go
package validatebreakdown

import (
	"context"
	"fmt"
	"math"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

const (
	TaskType = "validate-breakdown"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute coerces the raw object into a CostBreakdown. Item-level problems
// drop the item with a warning (or fail in strict mode); derived amounts are
// always recomputed.
func (h *Handler) Execute(ctx context.Context, raw models.RawBreakdown) (*Result, error) {
	if raw == nil {
		return nil, apperrors.NewSynthesisSchemaError("breakdown is missing", nil)
	}

	breakdown := &models.CostBreakdown{
		Title:   toText(raw["title"]),
		Summary: toText(raw["summary"]),
	}
	var (
		warnings []Warning
		running  float64
	)

	for _, category := range models.Categories {
		entries, warn := categoryEntries(raw, category)
		if warn != nil {
			warnings = append(warnings, *warn)
		}

		items := make([]models.LineItem, 0, len(entries))
		for i, entry := range entries {
			item, err := coerceItem(category, entry)
			if err == nil && math.IsInf(running+item.Quantity*item.UnitCost, 0) {
				err = fmt.Errorf("extended cost pushes the breakdown total past the representable range")
			}
			if err != nil {
				w := Warning{Category: category, Index: i, Reason: err.Error()}
				if h.config.RejectInvalidItems {
					return nil, apperrors.NewSynthesisSchemaError(w.String(), err)
				}
				warnings = append(warnings, w)
				continue
			}
			running += item.Quantity * item.UnitCost
			items = append(items, item)
		}
		breakdown.SetItems(category, items)
	}

	breakdown.Recompute()

	for _, w := range warnings {
		h.logger.Warn("line item dropped", map[string]interface{}{
			"category": string(w.Category),
			"index":    w.Index,
			"reason":   w.Reason,
		})
	}

	if breakdown.LineItemCount() == 0 {
		return nil, apperrors.NewEmptyBreakdownError(len(warnings))
	}

	h.logger.Info("breakdown validated", map[string]interface{}{
		"lineItems": breakdown.LineItemCount(),
		"dropped":   len(warnings),
		"total":     breakdown.Total,
	})

	return &Result{Breakdown: breakdown, Warnings: warnings}, nil
}

// categoryEntries returns the raw entries of one category. A value that is not
// a list is reported as a single warning.
func categoryEntries(raw models.RawBreakdown, category models.Category) ([]interface{}, *Warning) {
	v, ok := raw[string(category)]
	if !ok || v == nil {
		return nil, nil
	}
	entries, ok := v.([]interface{})
	if !ok {
		return nil, &Warning{Category: category, Index: -1, Reason: fmt.Sprintf("expected a list, got %T", v)}
	}
	return entries, nil
}

func coerceItem(category models.Category, entry interface{}) (models.LineItem, error) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return models.LineItem{}, fmt.Errorf("item is %T, not an object", entry)
	}

	descValue, _, _ := lookup(fields, descriptionKeys)
	description := toText(descValue)
	if description == "" {
		return models.LineItem{}, fmt.Errorf("description is missing")
	}

	unitValue, _, _ := lookup(fields, []string{"unit"})
	unit := toText(unitValue)

	quantity, err := coerceQuantity(category, fields, &unit)
	if err != nil {
		return models.LineItem{}, err
	}

	costValue, costKey, ok := lookup(fields, unitCostKeys)
	if !ok {
		return models.LineItem{}, fmt.Errorf("unit_cost is missing")
	}
	unitCost, err := toNumber(costValue)
	if err != nil {
		return models.LineItem{}, fmt.Errorf("%s: %w", costKey, err)
	}
	if math.IsInf(quantity*unitCost, 0) {
		return models.LineItem{}, fmt.Errorf("extended cost overflows (quantity %g x unit_cost %g)", quantity, unitCost)
	}

	return models.LineItem{
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		UnitCost:    unitCost,
	}, nil
}

// coerceQuantity reads quantity, falling back to a labor crew calculation
// (workers x hours per day x days) billed in hours.
func coerceQuantity(category models.Category, fields map[string]interface{}, unit *string) (float64, error) {
	if v, key, ok := lookup(fields, quantityKeys); ok {
		q, err := toNumber(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return q, nil
	}

	if category == models.CategoryLabor {
		product := 1.0
		for _, key := range crewKeys {
			v, ok := fields[key]
			if !ok || v == nil {
				return 0, fmt.Errorf("quantity is missing")
			}
			n, err := toNumber(v)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", key, err)
			}
			product *= n
		}
		if math.IsInf(product, 0) {
			return 0, fmt.Errorf("crew hours overflow")
		}
		if *unit == "" {
			*unit = "hr"
		}
		return product, nil
	}

	return 0, fmt.Errorf("quantity is missing")
}
