// internal/workers/change-order/synthesize-breakdown/schema.go
package synthesizebreakdown

import (
	"encoding/json"
	"fmt"
	"strings"

	"change-order-generator/internal/common/validation"
	"change-order-generator/internal/models"
)

var nullableArray = map[string]interface{}{"type": []interface{}{"array", "null"}}
var nullableString = map[string]interface{}{"type": []interface{}{"string", "null"}}

// breakdownSchema checks the top-level shape only. Item contents are the
// validator's concern.
var breakdownSchema = validation.MustSchema(map[string]interface{}{
	"type": "object",
	"required": []interface{}{
		string(models.CategoryMaterials),
		string(models.CategoryEquipment),
		string(models.CategoryLabor),
		string(models.CategoryGeneralRequirements),
	},
	"properties": map[string]interface{}{
		"title":                                   nullableString,
		"summary":                                 nullableString,
		string(models.CategoryMaterials):           nullableArray,
		string(models.CategoryEquipment):           nullableArray,
		string(models.CategoryLabor):               nullableArray,
		string(models.CategorySubcontractors):      nullableArray,
		string(models.CategoryGeneralRequirements): nullableArray,
	},
})

// keyAliases maps camelCase keys some models emit onto the canonical names.
var keyAliases = map[string]string{
	"generalRequirements": string(models.CategoryGeneralRequirements),
	"general_conditions":  string(models.CategoryGeneralRequirements),
	"subcontractor":       string(models.CategorySubcontractors),
}

// parseBreakdown decodes and shape-checks a reasoning reply.
func parseBreakdown(reply string) (models.RawBreakdown, error) {
	body := stripCodeFence(reply)
	if body == "" {
		return nil, fmt.Errorf("empty response body")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	for alias, canonical := range keyAliases {
		if v, ok := raw[alias]; ok {
			if _, exists := raw[canonical]; !exists {
				raw[canonical] = v
			}
			delete(raw, alias)
		}
	}

	result, err := breakdownSchema.Validate(raw)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("schema mismatch: %s", result.Summary())
	}

	return models.RawBreakdown(raw), nil
}

// stripCodeFence removes a surrounding Markdown code fence such as ```json.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
