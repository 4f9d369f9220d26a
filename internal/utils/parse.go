package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalLenient unmarshals data into target. If data is not valid JSON it
// is run through jsonrepair (fixing things like single quotes, unquoted keys,
// trailing commas or a truncated tail) and unmarshaled again. It returns the
// bytes that were finally decoded, which differ from data only when a repair
// happened.
//
// Example:
//
//	var out map[string]any
//	fixed, err := UnmarshalLenient([]byte(`{name: 'John', age: 30,}`), &out)
func UnmarshalLenient(data []byte, target any) ([]byte, error) {
	err := json.Unmarshal(data, target)
	if err == nil {
		return data, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		// Type mismatches are not something a repair can fix.
		return nil, err
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return nil, fmt.Errorf("failed to repair JSON: unmarshal error: %w, repair error: %v", err, repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repaired JSON: %w (repaired: %s)", err, TruncateString(repaired, DefaultMaxStringLength))
	}
	return []byte(repaired), nil
}
