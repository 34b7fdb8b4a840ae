package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope of every spellbook span.
const scope = "github.com/MrWong99/spellbook"

// Span names.
const (
	SpanSessionRun    = "session.run"
	SpanSpellEvaluate = "spell.evaluate"
)

// Span attribute keys.
const (
	AttrSessionRemote  = attribute.Key("session.remote")
	AttrSessionStopped = attribute.Key("session.stopped")
	AttrSessionTokens  = attribute.Key("session.tokens")

	AttrSpellToken      = attribute.Key("spell.token")
	AttrSpellIndex      = attribute.Key("spell.index")
	AttrSpellExact      = attribute.Key("spell.exact")
	AttrSpellCandidates = attribute.Key("spell.candidates")
)

// StartSpan starts a span from the globally registered provider. The
// provider is looked up on every call so tests can swap it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(scope).Start(ctx, name, opts...)
}

// StartSession opens the server span covering one client session.
func StartSession(ctx context.Context, remote string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSessionRun,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrSessionRemote.String(remote)),
	)
}

// EndSession records how far the session got and ends span. A non-nil err
// marks the span failed.
func EndSession(span trace.Span, stopped string, tokens int, err error) {
	span.SetAttributes(
		AttrSessionStopped.String(stopped),
		AttrSessionTokens.Int(tokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartEvaluate opens the span for ranking one token.
func StartEvaluate(ctx context.Context, index int, token string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSpellEvaluate,
		trace.WithAttributes(
			AttrSpellIndex.Int(index),
			AttrSpellToken.String(token),
		),
	)
}

// EndEvaluate records the lookup result and candidate count and ends span.
func EndEvaluate(span trace.Span, exact bool, candidates int) {
	span.SetAttributes(
		AttrSpellExact.Bool(exact),
		AttrSpellCandidates.Int(candidates),
	)
	span.End()
}

// TraceID returns the hex trace ID of the span in ctx, or "" without one.
// Sessions and admin requests both log it.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id taken from
// ctx. Without a span it is [slog.Default] unchanged.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
