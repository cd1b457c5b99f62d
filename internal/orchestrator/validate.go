package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/precisesoft/DocQueryAI/internal/models"
)

// Contract names the wrapper identity and the data paths an extraction must
// fill for the output to count as schema-valid.
type Contract struct {
	SchemaID      string
	SchemaVersion string
	Required      []string
}

// DefaultContract is the generic document-extraction contract: the model
// must return document identity plus the extracted field map.
func DefaultContract() Contract {
	return Contract{
		SchemaID:      "DocumentExtraction",
		SchemaVersion: "1.0",
		Required:      []string{"doc", "doc.filename", "fields"},
	}
}

// unconfidentCap is the ceiling applied to any claimed confidence that has
// no supporting evidence.
const unconfidentCap = 0.5

// wrapper mirrors the structured output the extraction model is steered to
// produce: identity, extracted data and self-reported metadata.
type wrapper struct {
	SchemaID      string         `json:"schema_id"`
	SchemaVersion string         `json:"schema_version"`
	Data          map[string]any `json:"data"`
	Meta          wrapperMeta    `json:"meta"`
}

type wrapperMeta struct {
	AgentVersion      string             `json:"agent_version"`
	Model             string             `json:"model"`
	GeneratedAt       string             `json:"generated_at"`
	JobID             string             `json:"job_id"`
	OverallConfidence float64            `json:"overall_confidence"`
	FieldConfidence   []fieldConfidence  `json:"field_confidence"`
	FieldEvidence     []fieldEvidence    `json:"field_evidence"`
	Validation        *wrapperValidation `json:"validation"`
}

type fieldConfidence struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

type fieldEvidence struct {
	Path     string `json:"path"`
	Evidence []struct {
		Page int            `json:"page"`
		BBox map[string]any `json:"bbox"`
	} `json:"evidence"`
}

type wrapperValidation struct {
	SchemaOK        bool     `json:"schema_ok"`
	MissingRequired []string `json:"missing_required"`
	Warnings        []string `json:"warnings"`
}

// parseWrapper decodes the raw model output into a wrapper.
func parseWrapper(raw string) (*wrapper, error) {
	var w wrapper
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}
	return &w, nil
}

// validate checks w against the contract and folds confidence and evidence
// into a ResultMeta. Claimed confidences above the cap lose it when the
// claim has no supporting evidence; the overall confidence is the mean of
// the capped values.
func validate(w *wrapper, contract Contract) models.ResultMeta {
	var missing, warnings []string

	if w.SchemaID != contract.SchemaID {
		warnings = append(warnings, fmt.Sprintf("unexpected schema_id %q", w.SchemaID))
	}
	if w.Data == nil {
		missing = append(missing, "data")
	}
	for _, path := range contract.Required {
		if !hasPath(w.Data, path) {
			missing = append(missing, path)
		}
	}

	if w.Meta.Validation != nil {
		warnings = append(warnings, w.Meta.Validation.Warnings...)
		for _, m := range w.Meta.Validation.MissingRequired {
			if !contains(missing, m) {
				missing = append(missing, m)
			}
		}
	}

	evidenced := make(map[string]bool)
	for _, fe := range w.Meta.FieldEvidence {
		if fe.Path != "" && len(fe.Evidence) > 0 {
			evidenced[fe.Path] = true
		}
	}

	var sum float64
	var missingEvidence []string
	for _, fc := range w.Meta.FieldConfidence {
		conf := fc.Confidence
		if !evidenced[fc.Path] {
			missingEvidence = append(missingEvidence, fc.Path)
			if conf > unconfidentCap {
				conf = unconfidentCap
			}
		}
		sum += conf
	}
	overall := unconfidentCap
	if n := len(w.Meta.FieldConfidence); n > 0 {
		overall = sum / float64(n)
	}

	if len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("missing required: %s", strings.Join(missing, ", ")))
	}

	return models.ResultMeta{
		SchemaOK:             len(missing) == 0,
		OverallConfidence:    overall,
		MissingEvidencePaths: missingEvidence,
		Warnings:             warnings,
	}
}

// hasPath reports whether a dotted path resolves to a non-nil, non-empty
// value inside data.
func hasPath(data map[string]any, path string) bool {
	if data == nil {
		return false
	}
	cur := any(data)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = obj[part]
		if !ok {
			return false
		}
	}
	switch v := cur.(type) {
	case nil:
		return false
	case string:
		return v != ""
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// wrapperSchema is the JSON-schema grammar handed to the extraction model so
// its output is constrained to the wrapper shape. The inner data object is
// steered by the prompt rather than the grammar.
func wrapperSchema(contract Contract) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"schema_id", "schema_version", "data", "meta"},
		"properties": map[string]any{
			"schema_id":      map[string]any{"type": "string", "const": contract.SchemaID},
			"schema_version": map[string]any{"type": "string", "const": contract.SchemaVersion},
			"data":           map[string]any{"type": "object"},
			"meta": map[string]any{
				"type":     "object",
				"required": []string{"agent_version", "model", "generated_at", "job_id", "overall_confidence", "validation"},
				"properties": map[string]any{
					"agent_version":      map[string]any{"type": "string"},
					"model":              map[string]any{"type": "string"},
					"generated_at":       map[string]any{"type": "string"},
					"job_id":             map[string]any{"type": "string"},
					"overall_confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"field_confidence": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"path", "confidence"},
							"properties": map[string]any{
								"path":       map[string]any{"type": "string"},
								"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
							},
						},
					},
					"field_evidence": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"path", "evidence"},
							"properties": map[string]any{
								"path": map[string]any{"type": "string"},
								"evidence": map[string]any{
									"type": "array",
									"items": map[string]any{
										"type":     "object",
										"required": []string{"page"},
										"properties": map[string]any{
											"page": map[string]any{"type": "integer", "minimum": 1},
											"bbox": map[string]any{"type": "object"},
										},
									},
								},
							},
						},
					},
					"validation": map[string]any{
						"type":     "object",
						"required": []string{"schema_ok"},
						"properties": map[string]any{
							"schema_ok":        map[string]any{"type": "boolean"},
							"missing_required": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"warnings":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
			},
		},
	}
}
