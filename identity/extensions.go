package identity

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Extensions is a typed plugin bundle keyed by type name. Values round-trip
// through (de)serialization as raw JSON: the framework never needs to know a
// plugin's Go type, and an unknown extension type present on the wire is
// preserved rather than rejected, so old snapshots keep deserializing after a
// plugin is removed from the running binary.
type Extensions map[string]json.RawMessage

// Clone returns a shallow copy of the bundle. Individual json.RawMessage
// values are not mutated in place anywhere in this package, so sharing them
// across the clone is safe.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// With returns a copy of the bundle with typeName's payload replaced by the
// JSON encoding of value.
func (e Extensions) With(typeName string, value any) (Extensions, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal extension %q: %w", typeName, err)
	}
	out := e.Clone()
	if out == nil {
		out = make(Extensions, 1)
	}
	out[typeName] = raw
	return out, nil
}

// Decode unmarshals typeName's payload into dst. Returns false if typeName is
// not present in the bundle.
func (e Extensions) Decode(typeName string, dst any) (bool, error) {
	raw, ok := e[typeName]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("identity: decode extension %q: %w", typeName, err)
	}
	return true, nil
}

// SchemaValidator validates a raw JSON extension payload against a
// caller-registered JSON Schema before it is accepted into a snapshot's
// extension bundle. This is opt-in: snapshots do not validate extensions
// unless the caller runs them through ValidateExtension.
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator constructs an empty validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles and associates a JSON Schema (as a decoded document,
// e.g. from json.Unmarshal into map[string]any) with an extension type name.
func (v *SchemaValidator) Register(typeName string, schemaDoc any) error {
	c := jsonschema.NewCompiler()
	url := "mem://" + typeName
	if err := c.AddResource(url, schemaDoc); err != nil {
		return fmt.Errorf("identity: add schema resource for %q: %w", typeName, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("identity: compile schema for %q: %w", typeName, err)
	}
	v.schemas[typeName] = sch
	return nil
}

// Validate checks the extension bundle's payload for typeName against the
// registered schema. Returns nil if no schema is registered for typeName
// (validation is opt-in per type).
func (v *SchemaValidator) Validate(typeName string, raw json.RawMessage) error {
	sch, ok := v.schemas[typeName]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("identity: extension %q is not valid JSON: %w", typeName, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("identity: extension %q failed schema validation: %w", typeName, err)
	}
	return nil
}

// ValidateExtension validates value's JSON encoding for typeName against v
// before it is added to the bundle, returning the extended bundle on success.
func (e Extensions) ValidateExtension(v *SchemaValidator, typeName string, value any) (Extensions, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal extension %q: %w", typeName, err)
	}
	if v != nil {
		if err := v.Validate(typeName, raw); err != nil {
			return nil, err
		}
	}
	out := e.Clone()
	if out == nil {
		out = make(Extensions, 1)
	}
	out[typeName] = raw
	return out, nil
}
