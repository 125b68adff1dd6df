package telemetry

// Attribute names recorded on operation spans and metrics.
const (
	AttrOperationName    = "pdfmaster.operation.name"           // Operation identifier (e.g. "merge")
	AttrOperationSuccess = "pdfmaster.operation.result.success" // Execution success (boolean)
	AttrOperationError   = "pdfmaster.operation.result.error"   // Error message if failed
	AttrOperationArgs    = "pdfmaster.operation.arguments"      // Sanitised arguments (JSON)
	AttrOperationArgsCut = "pdfmaster.operation.arguments.truncated"
	AttrErrorCategory    = "error.category" // Error kind (bad_request, not_found, ...)
	AttrTransport        = "pdfmaster.transport"
	AttrUploadExtension  = "pdfmaster.upload.extension"
)

// Transports an operation can be invoked through.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportCLI   = "cli"
)

// Span names.
const (
	SpanNameOperation = "operation.execute"
	SpanNameHTTP      = "http.server"
)

// Metric names.
const (
	MetricOperationCalls    = "pdfmaster.operation.calls"
	MetricOperationDuration = "pdfmaster.operation.duration"
	MetricOperationErrors   = "pdfmaster.operation.errors"
	MetricUploadBytes       = "pdfmaster.upload.bytes"
)
