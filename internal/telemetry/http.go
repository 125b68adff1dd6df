package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHandler instruments an HTTP handler when tracing is enabled and returns it
// unchanged otherwise.
func WrapHandler(h http.Handler) http.Handler {
	if !IsEnabled() {
		return h
	}
	return otelhttp.NewHandler(h, SpanNameHTTP,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
