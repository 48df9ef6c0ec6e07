package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/m3n3sx/gatehouse/catalog"
)

func settingsDef(t *testing.T) catalog.Definition {
	t.Helper()
	return catalog.Definition{
		Name:        "settings.updated",
		Description: "Admin settings were changed and saved.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"section":   {"type": "string"},
				"changed":   {"type": "integer"}
			},
			"required": ["section"]
		}`),
	}
}

func TestValidatorNoSchemaAcceptsAnything(t *testing.T) {
	v := catalog.NewValidator()

	d := catalog.Definition{Name: "theme.applied"}
	if err := v.Validate(d, map[string]any{"theme": "midnight"}); err != nil {
		t.Fatal("schemaless definition should accept any payload, got:", err)
	}
}

func TestValidatorValidPayload(t *testing.T) {
	v := catalog.NewValidator()

	data := map[string]any{
		"section": "colors",
		"changed": 3.0,
	}
	if err := v.Validate(settingsDef(t), data); err != nil {
		t.Fatal("valid payload should pass, got:", err)
	}
}

func TestValidatorMissingRequired(t *testing.T) {
	v := catalog.NewValidator()

	data := map[string]any{"changed": 3.0}
	if err := v.Validate(settingsDef(t), data); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestValidatorWrongType(t *testing.T) {
	v := catalog.NewValidator()

	data := map[string]any{"section": 42.0}
	if err := v.Validate(settingsDef(t), data); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
}

func TestValidatorMalformedSchema(t *testing.T) {
	v := catalog.NewValidator()

	d := catalog.Definition{
		Name:   "backup.created",
		Schema: json.RawMessage(`{"type": `),
	}
	if err := v.Validate(d, map[string]any{}); err == nil {
		t.Fatal("expected error for malformed schema JSON")
	}
}

func TestValidatorCachesCompiledSchemas(t *testing.T) {
	v := catalog.NewValidator()
	d := settingsDef(t)

	data := map[string]any{"section": "typography"}

	// First call compiles, second hits the cache.
	if err := v.Validate(d, data); err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(d, data); err != nil {
		t.Fatal(err)
	}
}
