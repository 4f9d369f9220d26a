// Package content classifies completed HTTP responses and extracts their
// payloads.
//
// Handling a response happens in three independent steps:
//
//   - [CheckStatus] turns non-2xx statuses into typed errors from
//     core/apierror.
//   - [Decode] picks a decode path from the declared content type (see
//     [Negotiate]) and produces a [Payload] or a bad-content-type error.
//   - [Validate] and [As] check a decoded JSON payload against a schema and
//     produce a typed value or a shape error. A failed check never yields a
//     partially populated value.
//
// Every function is pure: the same body and content type always give the
// same result.
package content
