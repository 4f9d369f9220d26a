// Package apierror defines the error taxonomy shared by every docflow call.
//
// Transient failures ([TransportError], 5xx [APIError]) are retried by the
// client and only reach the caller wrapped in [MaxRetriesExceeded].
// Structural failures ([ValidationError], 4xx [APIError], [DecodeError]) are
// returned immediately. Inspect them with errors.As:
//
//	var validationErr *apierror.ValidationError
//	if errors.As(err, &validationErr) {
//	    fmt.Println(string(validationErr.Body))
//	}
package apierror
