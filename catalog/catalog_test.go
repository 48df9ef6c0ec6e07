package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/m3n3sx/gatehouse/catalog"
)

func TestBuiltinVocabulary(t *testing.T) {
	c := catalog.New()

	for _, name := range []string{
		"settings.updated",
		"settings.reset",
		"theme.applied",
		"theme.removed",
		"backup.created",
		"backup.restored",
		"security.alert",
	} {
		if !c.Contains(name) {
			t.Errorf("builtin vocabulary missing %q", name)
		}
	}

	if c.Contains("invoice.created") {
		t.Error("unknown event reported as supported")
	}
	if c.Contains(catalog.TestEvent) {
		t.Error("probe test event must not be subscribable")
	}
}

func TestExtraDefinitionOverridesBuiltin(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["settings_count"]}`)
	c := catalog.New(catalog.Definition{
		Name:   "settings.updated",
		Schema: schema,
	})

	if err := c.ValidatePayload("settings.updated", map[string]any{"settings_count": 12.0}); err != nil {
		t.Fatal("conforming payload should pass, got:", err)
	}

	if err := c.ValidatePayload("settings.updated", map[string]any{"other": true}); err == nil {
		t.Fatal("expected schema validation error for missing required field")
	}
}

func TestValidatePayloadNoSchema(t *testing.T) {
	c := catalog.New()

	// Definitions without a schema accept anything, including unknown names.
	if err := c.ValidatePayload("settings.updated", map[string]any{"anything": 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.ValidatePayload("no.such.event", nil); err != nil {
		t.Fatal(err)
	}
}

func TestNamesSorted(t *testing.T) {
	c := catalog.New(catalog.Definition{Name: "zz.custom"})

	names := c.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
	if names[len(names)-1] != "zz.custom" {
		t.Errorf("extra definition missing from names: %v", names)
	}
}
