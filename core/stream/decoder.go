package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/internal/jsonschema"
)

// Mode selects how lines are decoded.
type Mode int

const (
	// ModeJSON decodes every line as one JSON value (NDJSON).
	ModeJSON Mode = iota
	// ModeText yields every line verbatim.
	ModeText
)

func (m Mode) String() string {
	if m == ModeText {
		return "text"
	}
	return "json"
}

// EventKind tags a DecodedEvent.
type EventKind string

const (
	EventJSON EventKind = "json"
	EventText EventKind = "text"
)

// DecodedEvent is one decoded line. Err is only set for malformed JSON lines
// when the decoder keeps them; it never ends the stream.
type DecodedEvent struct {
	Kind  EventKind
	Value json.RawMessage
	Text  string
	Err   error
}

// Decode unmarshals the JSON value of the event into v.
func (e DecodedEvent) Decode(v any) error {
	if e.Kind != EventJSON || e.Err != nil {
		return fmt.Errorf("event does not carry a JSON value")
	}
	return json.Unmarshal(e.Value, v)
}

// Decoder decodes single lines.
type Decoder struct {
	Mode Mode
	// Schema, when set, is checked against every JSON line. Lines that do not
	// match are treated like lines that do not parse.
	Schema *jsonschema.Schema
	// KeepMalformed yields malformed JSON lines with Err set instead of
	// skipping them.
	KeepMalformed bool

	compiled *jsonschema.Compiled
}

// Compile resolves Schema once so later lines skip the resolution step.
// Decoders built without calling it validate each line from scratch.
func (d Decoder) Compile() (Decoder, error) {
	if d.Schema == nil {
		return d, nil
	}
	compiled, err := jsonschema.Compile(d.Schema)
	if err != nil {
		return d, err
	}
	d.compiled = compiled
	return d, nil
}

// DecodeLine decodes one line. It reports false when the line is skipped:
// blank lines in JSON mode, and malformed lines unless KeepMalformed is set.
func (d Decoder) DecodeLine(line []byte) (DecodedEvent, bool) {
	if d.Mode == ModeText {
		return DecodedEvent{Kind: EventText, Text: string(line)}, true
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return DecodedEvent{}, false
	}

	if err := d.check(trimmed); err != nil {
		if !d.KeepMalformed {
			return DecodedEvent{}, false
		}
		return DecodedEvent{Kind: EventJSON, Text: string(line), Err: err}, true
	}
	return DecodedEvent{Kind: EventJSON, Value: json.RawMessage(bytes.Clone(trimmed))}, true
}

func (d Decoder) check(line []byte) error {
	if !json.Valid(line) {
		return &apierror.DecodeError{Kind: apierror.DecodeBadContentType, Message: "invalid JSON line", Payload: bytes.Clone(line)}
	}
	if d.Schema == nil {
		return nil
	}

	var err error
	if d.compiled != nil {
		err = d.compiled.ValidateJSON(line)
	} else {
		err = jsonschema.ValidateJSON(d.Schema, line)
	}
	if err != nil {
		return &apierror.DecodeError{Kind: apierror.DecodeShape, Message: err.Error(), Payload: bytes.Clone(line), Cause: err}
	}
	return nil
}
