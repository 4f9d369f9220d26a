package jsonschema

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestGeneratesPrimitiveSchemas(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		want   string
	}{
		{"string", GenerateJSONSchema[string](), "string"},
		{"int", GenerateJSONSchema[int](), "integer"},
		{"uint8", GenerateJSONSchema[uint8](), "integer"},
		{"float32", GenerateJSONSchema[float32](), "number"},
		{"bool", GenerateJSONSchema[bool](), "boolean"},
		{"bytes", GenerateJSONSchema[[]byte](), "string"},
		{"slice", GenerateJSONSchema[[]string](), "array"},
		{"map", GenerateJSONSchema[map[string]int](), "object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.schema.Type != tt.want {
				t.Errorf("Expected type %q, got %q", tt.want, tt.schema.Type)
			}
		})
	}
}

func TestGeneratesArrayItemsAndMapValues(t *testing.T) {
	arraySchema := GenerateJSONSchema[[]int]()
	if arraySchema.Items == nil || arraySchema.Items.Type != "integer" {
		t.Errorf("Expected integer items, got %+v", arraySchema.Items)
	}

	mapSchema := GenerateJSONSchema[map[string]float64]()
	values, ok := mapSchema.AdditionalProperties.(*Schema)
	if !ok || values.Type != "number" {
		t.Errorf("Expected number additionalProperties, got %+v", mapSchema.AdditionalProperties)
	}
}

type extraction struct {
	ID         string            `json:"id"`
	Status     string            `json:"status" jsonschema:"description=Processing state,enum=pending,enum=done"`
	Pages      int               `json:"pages,omitempty"`
	Confidence *float64          `json:"confidence"`
	Labels     []string          `json:"labels,omitempty" jsonschema:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Ignored    string            `json:"-"`
	internal   string
}

// TestGeneratesStructSchema verifies property naming, required detection and
// jsonschema tags.
func TestGeneratesStructSchema(t *testing.T) {
	schema := GenerateJSONSchema[extraction]()

	if schema.Type != "object" {
		t.Fatalf("Expected object, got %q", schema.Type)
	}
	for _, name := range []string{"id", "status", "pages", "confidence", "labels", "metadata"} {
		if _, ok := schema.Properties[name]; !ok {
			t.Errorf("Expected property %q", name)
		}
	}
	for _, name := range []string{"Ignored", "internal", "-"} {
		if _, ok := schema.Properties[name]; ok {
			t.Errorf("Did not expect property %q", name)
		}
	}

	wantRequired := []string{"id", "status", "labels"}
	if !slices.Equal(schema.Required, wantRequired) {
		t.Errorf("Expected required %v, got %v", wantRequired, schema.Required)
	}

	status := schema.Properties["status"]
	if status.Description != "Processing state" {
		t.Errorf("Expected description, got %q", status.Description)
	}
	if len(status.Enum) != 2 || status.Enum[0] != "pending" || status.Enum[1] != "done" {
		t.Errorf("Expected enum [pending done], got %v", status.Enum)
	}
}

type base struct {
	CreatedAt string `json:"created_at"`
}

type withEmbedded struct {
	base
	Name string `json:"name"`
}

// TestFlattensEmbeddedStructs verifies encoding/json style promotion.
func TestFlattensEmbeddedStructs(t *testing.T) {
	schema := GenerateJSONSchema[withEmbedded]()
	if _, ok := schema.Properties["created_at"]; !ok {
		t.Errorf("Expected embedded field to be promoted, got %v", schema.Properties)
	}
	if _, ok := schema.Properties["base"]; ok {
		t.Errorf("Did not expect embedded struct as its own property")
	}
}

type treeNode struct {
	Value    string      `json:"value"`
	Children []*treeNode `json:"children,omitempty"`
}

// TestHandlesRecursiveStruct verifies $defs/$ref generation and that the
// result can be marshaled without a cycle.
func TestHandlesRecursiveStruct(t *testing.T) {
	schema := GenerateJSONSchema[treeNode]()

	children := schema.Properties["children"]
	if children == nil || children.Items == nil || children.Items.Ref != "#/$defs/treenode" {
		t.Fatalf("Expected children items to reference #/$defs/treenode, got %+v", children)
	}
	if _, ok := schema.Defs["treenode"]; !ok {
		t.Fatalf("Expected treenode definition, got %v", schema.Defs)
	}
	if _, err := json.Marshal(schema); err != nil {
		t.Fatalf("Expected schema to marshal, got %v", err)
	}
}

// TestJsonString verifies compact and indented output.
func TestJsonString(t *testing.T) {
	schema := &Schema{Type: "string"}
	compact, err := schema.JsonString()
	if err != nil || compact != `{"type":"string"}` {
		t.Errorf("JsonString() = %q, %v", compact, err)
	}
	indented, err := schema.JsonString(true)
	if err != nil || indented != "{\n  \"type\": \"string\"\n}" {
		t.Errorf("JsonString(true) = %q, %v", indented, err)
	}
	if schema.String() != compact {
		t.Errorf("String() = %q, want %q", schema.String(), compact)
	}
}
