package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the trace ID of an admin request back to the caller.
const TraceHeader = "X-Trace-ID"

// unmatchedRoute labels requests no mux pattern claimed, so stray paths do
// not grow the route label set.
const unmatchedRoute = "unmatched"

// scrapeRoutes are polled by orchestrators and Prometheus. Their
// completions log at debug.
var scrapeRoutes = map[string]bool{
	"GET /healthz": true,
	"GET /readyz":  true,
	"GET /metrics": true,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the admin mux wrapped by it. Each request gets a
// server span continuing any incoming W3C trace context, a [TraceHeader]
// response header, one sample in [Metrics.HTTPRequestDuration] and a
// completion log line.
//
// next should be an [http.ServeMux]: the matched pattern, not the raw
// path, names the span and labels the sample.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			traceID := TraceID(ctx)
			if traceID != "" {
				w.Header().Set(TraceHeader, traceID)
			}

			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			// ServeMux stores the matched pattern on the request it routed.
			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			span.SetName("HTTP " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rec.status),
			)

			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("route", route),
					attribute.Int("status", rec.status),
				),
			)

			level := slog.LevelInfo
			if scrapeRoutes[route] && rec.status < http.StatusInternalServerError {
				level = slog.LevelDebug
			}
			slog.LogAttrs(ctx, level, "admin request",
				slog.String("trace_id", traceID),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
