package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// AnalysisJSONSchema describes the completion the model must return.
func AnalysisJSONSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	mapping := map[string]any{
		"type":       "object",
		"properties": map[string]any{"mapped": stringList, "gaps": stringList},
		"required":   []string{"mapped", "gaps"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scope": map[string]any{"type": "string"},
			"controls": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":   map[string]any{"type": "string", "minLength": 1},
						"status": map[string]any{"type": "string"},
					},
					"required": []string{"name", "status"},
				},
			},
			"cis_mapping":   mapping,
			"owasp_mapping": mapping,
			"gaps":          stringList,
			"summary":       map[string]any{"type": "string"},
			"quality_rating": map[string]any{
				"type":    "number",
				"minimum": report.MinQualityRating,
				"maximum": report.MaxQualityRating,
			},
		},
		"required": []string{"scope", "controls", "cis_mapping", "owasp_mapping", "gaps", "summary", "quality_rating"},
	}
}

var analysisSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(AnalysisJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("analysis.json")
})

// validateAnalysis checks a decoded JSON value against the analysis schema.
func validateAnalysis(v any) error {
	schema, err := analysisSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
