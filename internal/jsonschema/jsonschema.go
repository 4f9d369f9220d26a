package jsonschema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema used to describe expected response
// shapes. It is produced from Go types by [GenerateJSONSchema] and checked
// against decoded payloads by [Validate].
type Schema struct {
	// Type is the JSON type: "object", "array", "string", "number",
	// "integer", "boolean" or "null". Empty means any type.
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	// AdditionalProperties is either a bool or a *Schema for map values.
	AdditionalProperties any   `json:"additionalProperties,omitempty"`
	Default              any   `json:"default,omitempty"`
	Enum                 []any `json:"enum,omitempty"`
	// Ref points into Defs of the root schema ("#/$defs/<name>").
	Ref  string             `json:"$ref,omitempty"`
	Defs map[string]*Schema `json:"$defs,omitempty"`
	// Nullable lets a JSON null through regardless of Type. Pointers, slices
	// and maps are nullable because encoding/json writes their zero value as null.
	Nullable bool `json:"nullable,omitempty"`
}

const defsPrefix = "#/$defs/"

// GenerateJSONSchema derives a schema from the Go type T using its json tags.
// Fields without omitempty that are not pointers are required. The
// jsonschema tag adds "description=...", "enum=..." (repeatable) and
// "required". Self-referencing structs are emitted once under $defs and
// referenced with $ref.
func GenerateJSONSchema[T any]() *Schema {
	return ForType(reflect.TypeFor[T]())
}

// ForType is the non-generic form of GenerateJSONSchema.
func ForType(t reflect.Type) *Schema {
	gen := &generator{
		defs:      map[string]*Schema{},
		onStack:   map[reflect.Type]bool{},
		recursive: map[reflect.Type]bool{},
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var root *Schema
	if t.Kind() == reflect.Struct {
		root = gen.structSchema(t)
		if gen.recursive[t] {
			// Store a copy: root gets Defs below and must not contain itself.
			def := *root
			gen.defs[defName(t)] = &def
		}
	} else {
		root = gen.schemaFor(t)
	}

	if len(gen.defs) > 0 {
		root.Defs = gen.defs
	}
	return root
}

type generator struct {
	defs      map[string]*Schema
	onStack   map[reflect.Type]bool
	recursive map[reflect.Type]bool
}

func (g *generator) schemaFor(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return nullable(g.schemaFor(t.Elem()))
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// encoding/json writes []byte as base64 text.
			return &Schema{Type: "string"}
		}
		return &Schema{Type: "array", Items: g.schemaFor(t.Elem()), Nullable: t.Kind() == reflect.Slice}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: g.schemaFor(t.Elem()), Nullable: true}
	case reflect.Struct:
		if g.onStack[t] {
			g.recursive[t] = true
			return &Schema{Ref: defsPrefix + defName(t)}
		}
		schema := g.structSchema(t)
		if g.recursive[t] {
			g.defs[defName(t)] = schema
			return &Schema{Ref: defsPrefix + defName(t)}
		}
		return schema
	default:
		// interface{} and anything else accept any JSON value.
		return &Schema{}
	}
}

// nullable marks schema as accepting null. References are left alone since
// the definition they point to is shared.
func nullable(schema *Schema) *Schema {
	if schema.Ref == "" {
		schema.Nullable = true
	}
	return schema
}

func (g *generator) structSchema(t reflect.Type) *Schema {
	g.onStack[t] = true
	defer delete(g.onStack, t)

	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
	g.addFields(t, schema)
	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}
	return schema
}

// addFields writes the fields of t into schema, flattening embedded structs
// the way encoding/json does.
func (g *generator) addFields(t reflect.Type, schema *Schema) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name, options, _ := strings.Cut(jsonTag, ",")
		omitEmpty := strings.Contains(options, "omitempty") || strings.Contains(options, "omitzero")

		if field.Anonymous && name == "" {
			embedded := field.Type
			for embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				g.addFields(embedded, schema)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.schemaFor(field.Type)
		requiredByTag := false
		if fieldSchema.Ref == "" {
			var err error
			requiredByTag, err = applyJSONSchemaTag(field.Type, field.Tag, fieldSchema)
			if err != nil {
				slog.Error("invalid jsonschema tag", "field", name, "error", err)
			}
		}
		schema.Properties[name] = fieldSchema

		if (field.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			schema.Required = append(schema.Required, name)
		}
	}
}

func defName(t reflect.Type) string {
	if t.Name() != "" {
		return strings.ToLower(t.Name())
	}
	return "anonymousStruct"
}

// applyJSONSchemaTag applies description, enum and required from the
// jsonschema struct tag. Enum values are converted to the field's kind.
func applyJSONSchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *Schema) (bool, error) {
	jsonSchemaTag := tag.Get("jsonschema")
	if jsonSchemaTag == "" {
		return false, nil
	}
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}

	required := false
	for _, item := range strings.Split(jsonSchemaTag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		if !hasValue {
			if key == "required" {
				required = true
			}
			continue
		}

		switch key {
		case "description":
			schema.Description = value
		case "enum":
			enumValue, err := parseEnumValue(fieldType, value)
			if err != nil {
				return required, err
			}
			schema.Enum = append(schema.Enum, enumValue)
		}
	}
	return required, nil
}

func parseEnumValue(fieldType reflect.Type, value string) (any, error) {
	switch fieldType.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to int64 failed: %w", value, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to float64 failed: %w", value, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to bool failed: %w", value, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for field type: %v", fieldType)
	}
}

// JsonString converts the Schema to JSON, indented when indent is true.
func (s *Schema) JsonString(indent ...bool) (string, error) {
	var jsonBytes []byte
	var err error
	if len(indent) > 0 && indent[0] {
		jsonBytes, err = json.MarshalIndent(s, "", "  ")
	} else {
		jsonBytes, err = json.Marshal(s)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// String returns the compact JSON form of the schema.
func (s *Schema) String() string {
	jsonStr, err := s.JsonString()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return jsonStr
}
