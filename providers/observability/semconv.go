package observability

// Attribute keys, span names, event names and metric names shared by the
// client, its middlewares and the providers.

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
	AttrHTTPContentType      = "http.content_type"
	AttrHTTPRequestID        = "http.request_id"
)

// --- Request Attributes ---

const (
	// AttrRequestEncoding is "json", "multipart" or "none".
	AttrRequestEncoding = "request.encoding"

	AttrRequestFilesCount   = "request.files_count"
	AttrRequestStream       = "request.stream"
	AttrRequestIdempotent   = "request.idempotent"
	AttrIdempotencyKey      = "request.idempotency_key"
	AttrIdempotencyRefresh  = "request.idempotency_force_refresh"
	AttrResponseContentKind = "response.content_kind"
	AttrPayloadRepaired     = "payload.repaired"
)

// --- Retry Attributes ---

const (
	AttrRetryAttempt    = "retry.attempt"
	AttrRetryMaxRetries = "retry.max_retries"
	AttrRetryDelay      = "retry.delay"
)

// --- Stream Attributes ---

const (
	AttrStreamEvents    = "stream.events"
	AttrStreamMalformed = "stream.malformed"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrErrorType         = "error.type"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanClientRequest covers one logical call, retries included.
	SpanClientRequest = "docflow.request"
)

// --- Event Names ---

const (
	EventRequestPrepared  = "http.request.prepared"
	EventResponseReceived = "http.response.received"
	EventRetryScheduled   = "http.retry.scheduled"
	EventPayloadDecoded   = "payload.decoded"
	EventStreamOpened     = "stream.opened"
)

// --- Metric Names ---

const (
	MetricClientRequestCount    = "docflow.client.request.count"
	MetricClientRequestDuration = "docflow.client.request.duration"
	MetricClientErrorCount      = "docflow.client.error.count"
	MetricClientRetryCount      = "docflow.client.retry.count"
)
