package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AttrRequestID is the span attribute carrying the X-Request-ID value
const AttrRequestID = "request.id"

// Tracing starts a server span per request, named after the matched chi route.
// It must run after RequestID so the span can be tagged with the request ID.
func Tracing(serviceName string, routes chi.Routes, opts ...otelchi.Option) func(http.Handler) http.Handler {
	opts = append([]otelchi.Option{otelchi.WithChiRoutes(routes)}, opts...)
	base := otelchi.Middleware(serviceName, opts...)

	return func(next http.Handler) http.Handler {
		return base(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if span.IsRecording() {
				if requestID := GetRequestID(r.Context()); requestID != "" {
					span.SetAttributes(attribute.String(AttrRequestID, requestID))
				}
			}
			next.ServeHTTP(w, r)
		}))
	}
}
