package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/placefinder/placefinder/internal/api/middleware"

// Tracing starts a server span per request, continuing any incoming W3C
// trace context. Once routing is done the span takes the route pattern as
// its name so span names stay free of session ids.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(instrumentationName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parent := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(parent, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttrs(r, serviceName)...),
			)
			defer span.End()

			rec := newStatusRecorder(w)
			req := r.WithContext(ctx)
			next.ServeHTTP(rec, req)

			finishSpan(span, req, rec)
		})
	}
}

func requestAttrs(r *http.Request, serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme(r)),
		attribute.String("url.path", r.URL.Path),
		attribute.String("server.address", r.Host),
		attribute.String("client.address", r.RemoteAddr),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, attribute.String("url.query", r.URL.RawQuery))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	if id := GetRequestID(r.Context()); id != "" {
		attrs = append(attrs, attribute.String("request.id", id))
	}
	return attrs
}

// finishSpan records what is only known after the handler ran.
func finishSpan(span trace.Span, req *http.Request, rec *statusRecorder) {
	route := routePattern(req)
	span.SetName(req.Method + " " + route)
	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", rec.statusCode),
		attribute.Int64("http.response.body.size", rec.written),
	)
	if id := sessionID(req); id != "" {
		span.SetAttributes(attribute.String("placefinder.session_id", id))
	}
	if rec.statusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
	}
}

func scheme(r *http.Request) string {
	switch {
	case r.TLS != nil:
		return "https"
	case forwardedProto(r) != "":
		return forwardedProto(r)
	default:
		return "http"
	}
}
