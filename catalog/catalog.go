// Package catalog defines the vocabulary of events the host application can
// emit, with optional JSON Schema validation of trigger payloads.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Definition is the canonical description of a supported event.
type Definition struct {
	// Name is the dot-separated event name.
	// Convention: "<resource>.<action>" — e.g. "settings.updated".
	Name string `json:"name"`

	// Description is a human-readable explanation of when this event fires.
	Description string `json:"description"`

	// Schema is an optional JSON Schema describing the payload shape.
	// When set, Gatehouse.Trigger validates the event data against it.
	Schema json.RawMessage `json:"schema,omitempty"`
}

// TestEvent is the synthetic event used by the connectivity probe. It is not
// part of the subscribable vocabulary.
const TestEvent = "webhook.test"

// Builtin returns the event vocabulary of the admin-styler host.
func Builtin() []Definition {
	return []Definition{
		{Name: "settings.updated", Description: "Admin settings were changed and saved."},
		{Name: "settings.reset", Description: "Admin settings were reset to defaults."},
		{Name: "theme.applied", Description: "An admin theme preset was applied."},
		{Name: "theme.removed", Description: "An admin theme preset was deleted."},
		{Name: "backup.created", Description: "A settings backup was created."},
		{Name: "backup.restored", Description: "A settings backup was restored."},
		{Name: "security.alert", Description: "A security-relevant condition was detected."},
	}
}

// Catalog is the fixed event vocabulary consulted by the registry and the
// dispatcher. The built-in definitions can be extended at construction time;
// there is no runtime mutation.
type Catalog struct {
	defs      map[string]Definition
	validator *Validator
}

// New creates a catalog holding the built-in vocabulary plus any extra
// definitions the host registers at boot. An extra definition with a
// built-in name replaces it (e.g. to attach a payload schema).
func New(extra ...Definition) *Catalog {
	defs := make(map[string]Definition)
	for _, d := range Builtin() {
		defs[d.Name] = d
	}
	for _, d := range extra {
		defs[d.Name] = d
	}
	return &Catalog{
		defs:      defs,
		validator: NewValidator(),
	}
}

// Contains reports whether name is part of the supported vocabulary.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.defs[name]
	return ok
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Names returns the sorted vocabulary names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all definitions sorted by name.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.defs))
	for _, name := range c.Names() {
		defs = append(defs, c.defs[name])
	}
	return defs
}

// ValidatePayload checks the event payload against the definition's JSON
// Schema, if one is set. A definition without a schema accepts any payload.
func (c *Catalog) ValidatePayload(name string, data any) error {
	d, ok := c.defs[name]
	if !ok {
		return nil
	}

	if err := c.validator.Validate(d, data); err != nil {
		return fmt.Errorf("catalog: payload for %q: %w", name, err)
	}
	return nil
}
