// Docflow is a command line client for the docflow document-extraction API.
//
// It sends one request through the same runtime the SDK uses (retries,
// idempotency keys, content negotiation, stream decoding) and prints the
// result: JSON payloads indented, text payloads as is, and streamed responses
// as one JSON object per event.
//
// Usage:
//
//	# Fetch a resource
//	docflow /v1/extractions/ext_123
//
//	# Upload a document with form fields
//	docflow -X POST -F invoice.pdf --field mode=fast /v1/documents
//
//	# Send a JSON body and stream the results
//	docflow -X POST -d request.json --stream /v1/extractions/stream
//
//	# Show version information
//	docflow version
//
// Configuration comes from DOCFLOW_API_KEY, DOCFLOW_BASE_URL,
// DOCFLOW_TIMEOUT and DOCFLOW_MAX_RETRIES (a .env file is honoured), or from
// a YAML file given with --config.
package main

func main() {
	Execute()
}
