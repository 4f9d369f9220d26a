// Package utils provides shared low-level helpers used throughout the docflow
// internals: response body handling ([ReadLimited], [DrainAndClose],
// [CloseWithLog]), lenient JSON decoding backed by jsonrepair
// ([UnmarshalLenient]), string truncation for logs and error messages, [Ptr]
// for taking the address of a literal, and a small elapsed-time [Timer].
package utils
