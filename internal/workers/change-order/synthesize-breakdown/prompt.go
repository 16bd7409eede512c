// internal/workers/change-order/synthesize-breakdown/prompt.go
package synthesizebreakdown

import (
	"fmt"
	"strings"

	"change-order-generator/internal/models"
)

const systemPrompt = `You are a construction cost estimator. You turn job descriptions into itemized change orders.
Respond with a single JSON object and nothing else. Use exactly this shape:
{
  "title": "short change order title",
  "summary": "one paragraph describing the scope",
  "materials": [{"description": "...", "quantity": 0, "unit": "ea", "unit_cost": 0}],
  "equipment": [{"description": "...", "quantity": 0, "unit": "day", "unit_cost": 0}],
  "labor": [{"description": "...", "quantity": 0, "unit": "hr", "unit_cost": 0}],
  "subcontractors": [{"description": "...", "quantity": 0, "unit": "ls", "unit_cost": 0}],
  "general_requirements": [{"description": "...", "quantity": 0, "unit": "ls", "unit_cost": 0}]
}
Rules:
- Every category key must be present; use an empty array when a category does not apply.
- quantity and unit_cost are plain non-negative numbers in US dollars, without currency symbols.
- Do not compute extended costs or totals.`

// buildUserPrompt frames the normalized job text.
func buildUserPrompt(input *models.NormalizedInput) string {
	var parts []string
	switch input.Source {
	case models.SourceDocument:
		parts = append(parts, fmt.Sprintf("Job document text (%d pages):", input.PageCount))
	default:
		parts = append(parts, "Job description:")
	}
	parts = append(parts, input.Text)
	parts = append(parts, "\nProduce the change order JSON.")
	return strings.Join(parts, "\n")
}
