package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapperJSON(t *testing.T) string {
	t.Helper()
	return `{
		"schema_id": "DocumentExtraction",
		"schema_version": "1.0",
		"data": {
			"doc": {"filename": "invoice.pdf", "page_count": 2},
			"fields": {"total": "142.50"}
		},
		"meta": {
			"agent_version": "v1",
			"model": "gemma3:12b",
			"generated_at": "2026-08-31T10:00:00Z",
			"job_id": "j1",
			"overall_confidence": 0.9,
			"field_confidence": [{"path": "fields.total", "confidence": 0.9}],
			"field_evidence": [{"path": "fields.total", "evidence": [{"page": 1}]}],
			"validation": {"schema_ok": true}
		}
	}`
}

func TestValidateAcceptsCompleteWrapper(t *testing.T) {
	w, err := parseWrapper(wrapperJSON(t))
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	assert.True(t, meta.SchemaOK)
	assert.InDelta(t, 0.9, meta.OverallConfidence, 1e-9)
	assert.Empty(t, meta.MissingEvidencePaths)
	assert.Empty(t, meta.Warnings)
}

func TestValidateFlagsMissingRequired(t *testing.T) {
	w, err := parseWrapper(`{
		"schema_id": "DocumentExtraction",
		"schema_version": "1.0",
		"data": {"doc": {"page_count": 1}},
		"meta": {"overall_confidence": 0.8}
	}`)
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	assert.False(t, meta.SchemaOK)
	require.NotEmpty(t, meta.Warnings)
	assert.Contains(t, meta.Warnings[len(meta.Warnings)-1], "missing required")
	assert.Contains(t, meta.Warnings[len(meta.Warnings)-1], "doc.filename")
	assert.Contains(t, meta.Warnings[len(meta.Warnings)-1], "fields")
}

func TestValidateCapsConfidenceWithoutEvidence(t *testing.T) {
	w, err := parseWrapper(`{
		"schema_id": "DocumentExtraction",
		"schema_version": "1.0",
		"data": {
			"doc": {"filename": "a.pdf"},
			"fields": {"x": "1", "y": "2"}
		},
		"meta": {
			"field_confidence": [
				{"path": "fields.x", "confidence": 0.95},
				{"path": "fields.y", "confidence": 0.95}
			],
			"field_evidence": [
				{"path": "fields.x", "evidence": [{"page": 1}]}
			]
		}
	}`)
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	// fields.y has no evidence: its 0.95 is capped to 0.5, so the overall
	// mean is (0.95 + 0.5) / 2.
	assert.InDelta(t, 0.725, meta.OverallConfidence, 1e-9)
	assert.Equal(t, []string{"fields.y"}, meta.MissingEvidencePaths)
	assert.True(t, meta.SchemaOK)
}

func TestValidateNoClaimsDefaultsToCap(t *testing.T) {
	w, err := parseWrapper(`{
		"schema_id": "DocumentExtraction",
		"schema_version": "1.0",
		"data": {"doc": {"filename": "a.pdf"}, "fields": {}},
		"meta": {}
	}`)
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	assert.InDelta(t, unconfidentCap, meta.OverallConfidence, 1e-9)
}

func TestValidateMergesModelReportedMissing(t *testing.T) {
	w, err := parseWrapper(`{
		"schema_id": "DocumentExtraction",
		"schema_version": "1.0",
		"data": {"doc": {"filename": "a.pdf"}, "fields": {"x": "1"}},
		"meta": {
			"validation": {"schema_ok": false, "missing_required": ["fields.total"], "warnings": ["low quality scan"]}
		}
	}`)
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	assert.False(t, meta.SchemaOK)
	assert.Contains(t, meta.Warnings, "low quality scan")
}

func TestValidateWarnsOnWrongSchemaID(t *testing.T) {
	w, err := parseWrapper(`{
		"schema_id": "SomethingElse",
		"schema_version": "1.0",
		"data": {"doc": {"filename": "a.pdf"}, "fields": {}},
		"meta": {}
	}`)
	require.NoError(t, err)

	meta := validate(w, DefaultContract())

	require.NotEmpty(t, meta.Warnings)
	assert.Contains(t, meta.Warnings[0], "SomethingElse")
}

func TestParseWrapperRejectsMalformedJSON(t *testing.T) {
	_, err := parseWrapper(`{"schema_id": `)
	assert.Error(t, err)
}

func TestHasPath(t *testing.T) {
	data := map[string]any{
		"doc":    map[string]any{"filename": "a.pdf", "title": ""},
		"fields": map[string]any{},
		"none":   nil,
	}

	assert.True(t, hasPath(data, "doc"))
	assert.True(t, hasPath(data, "doc.filename"))
	assert.True(t, hasPath(data, "fields"))
	assert.False(t, hasPath(data, "doc.title"), "empty string does not satisfy a required path")
	assert.False(t, hasPath(data, "none"))
	assert.False(t, hasPath(data, "doc.filename.deeper"))
	assert.False(t, hasPath(data, "missing"))
	assert.False(t, hasPath(nil, "doc"))
}
