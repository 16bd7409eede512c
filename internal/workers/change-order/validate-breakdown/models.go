// internal/workers/change-order/validate-breakdown/models.go
package validatebreakdown

import (
	"fmt"

	"change-order-generator/internal/models"
)

// Warning records one dropped line item.
type Warning struct {
	Category models.Category `json:"category"`
	Index    int             `json:"index"`
	Reason   string          `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s[%d]: %s", w.Category, w.Index, w.Reason)
}

type Result struct {
	Breakdown *models.CostBreakdown `json:"breakdown"`
	Warnings  []Warning             `json:"warnings,omitempty"`
}
