package catalog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles the JSON Schemas attached to event definitions. The
// vocabulary is fixed after construction, so compiled schemas are cached by
// event name and compilation happens at most once per definition.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns an empty validator. Schemas compile lazily on the
// first payload validated against their definition.
func NewValidator() *Validator {
	return &Validator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks an event payload against its definition's schema. A
// definition without a schema accepts any payload.
func (v *Validator) Validate(d Definition, data any) error {
	if len(d.Schema) == 0 {
		return nil
	}

	schema, err := v.compile(d)
	if err != nil {
		return err
	}
	return schema.Validate(data)
}

func (v *Validator) compile(d Definition) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[d.Name]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}

	var doc any
	if err := json.Unmarshal(d.Schema, &doc); err != nil {
		return nil, fmt.Errorf("schema for %q: %w", d.Name, err)
	}

	// Each definition gets a stable resource URL derived from its name.
	url := "gatehouse://events/" + d.Name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema for %q: %w", d.Name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema for %q: %w", d.Name, err)
	}

	v.mu.Lock()
	v.compiled[d.Name] = schema
	v.mu.Unlock()

	return schema, nil
}
