package jsonschema

import (
	"encoding/json"
	"fmt"

	gojsonschema "github.com/google/jsonschema-go/jsonschema"
)

// ValidationError reports that a value does not match a schema. Message is
// the validator's description, which names the failing keyword and location.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Compiled is a schema resolved once and ready to validate many values.
type Compiled struct {
	resolved *gojsonschema.Resolved
}

// Compile resolves schema, including its $defs references. A nil schema
// compiles to a validator that accepts everything.
func Compile(schema *Schema) (*Compiled, error) {
	if schema == nil {
		return &Compiled{}, nil
	}
	converted, err := convert(schema)
	if err != nil {
		return nil, err
	}
	resolved, err := converted.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Compiled{resolved: resolved}, nil
}

// Validate checks value, which must be the result of json.Unmarshal into an
// `any` (map[string]any, []any, string, float64, bool or nil).
func (c *Compiled) Validate(value any) error {
	if c == nil || c.resolved == nil {
		return nil
	}
	if err := c.resolved.Validate(value); err != nil {
		return &ValidationError{Message: err.Error(), Cause: err}
	}
	return nil
}

// ValidateJSON decodes data and validates it.
func (c *Compiled) ValidateJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err), Cause: err}
	}
	return c.Validate(value)
}

// Validate checks value against schema. A nil schema accepts everything.
// Callers validating many values against one schema should Compile it once.
func Validate(schema *Schema, value any) error {
	compiled, err := Compile(schema)
	if err != nil {
		return &ValidationError{Message: err.Error(), Cause: err}
	}
	return compiled.Validate(value)
}

// ValidateJSON decodes data and validates it against schema.
func ValidateJSON(schema *Schema, data []byte) error {
	compiled, err := Compile(schema)
	if err != nil {
		return &ValidationError{Message: err.Error(), Cause: err}
	}
	return compiled.ValidateJSON(data)
}

// convert maps the generator's Schema onto the validator's representation.
// Nullable becomes a ["<type>", "null"] type list and enum values are
// normalised through JSON so that int64 tag values compare equal to decoded
// float64 numbers.
func convert(schema *Schema) (*gojsonschema.Schema, error) {
	if schema == nil {
		return nil, nil
	}
	out := &gojsonschema.Schema{
		Description: schema.Description,
		Required:    schema.Required,
		Ref:         schema.Ref,
	}

	switch {
	case schema.Type != "" && schema.Nullable && schema.Type != "null":
		out.Types = []string{schema.Type, "null"}
	case schema.Type != "":
		out.Type = schema.Type
	}

	if len(schema.Enum) > 0 {
		out.Enum = make([]any, 0, len(schema.Enum))
		for _, value := range schema.Enum {
			normalised, err := normalise(value)
			if err != nil {
				return nil, err
			}
			out.Enum = append(out.Enum, normalised)
		}
		if schema.Nullable {
			out.Enum = append(out.Enum, nil)
		}
	}

	var err error
	if out.Items, err = convert(schema.Items); err != nil {
		return nil, err
	}
	if out.Properties, err = convertMap(schema.Properties); err != nil {
		return nil, err
	}
	if out.Defs, err = convertMap(schema.Defs); err != nil {
		return nil, err
	}

	switch extra := schema.AdditionalProperties.(type) {
	case bool:
		if !extra {
			out.AdditionalProperties = &gojsonschema.Schema{Not: &gojsonschema.Schema{}}
		}
	case *Schema:
		if out.AdditionalProperties, err = convert(extra); err != nil {
			return nil, err
		}
	case map[string]any:
		// A schema that was itself decoded from JSON.
		nested, err := schemaFromMap(extra)
		if err != nil {
			return nil, err
		}
		if out.AdditionalProperties, err = convert(nested); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func convertMap(schemas map[string]*Schema) (map[string]*gojsonschema.Schema, error) {
	if len(schemas) == 0 {
		return nil, nil
	}
	out := make(map[string]*gojsonschema.Schema, len(schemas))
	for name, schema := range schemas {
		if schema == nil {
			continue
		}
		converted, err := convert(schema)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = converted
	}
	return out, nil
}

func normalise(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid enum value %v: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("invalid enum value %v: %w", value, err)
	}
	return out, nil
}

func schemaFromMap(raw map[string]any) (*Schema, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid additionalProperties schema: %w", err)
	}
	var schema Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, fmt.Errorf("invalid additionalProperties schema: %w", err)
	}
	return &schema, nil
}
