// Package jsonschema generates JSON Schema documents from Go types and
// validates decoded JSON values against them.
//
// [GenerateJSONSchema] walks a type with reflection, honouring json and
// jsonschema struct tags; self-referencing types are emitted under $defs and
// referenced with $ref. [Validate] is the second phase of response handling:
// after a payload has been decoded into plain Go values it checks them with
// github.com/google/jsonschema-go and reports a mismatch as a
// [ValidationError]. [Compile] resolves a schema once for repeated use.
package jsonschema
