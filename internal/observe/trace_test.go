package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs a recording provider as the global one for the
// duration of the test. Callers must not be parallel.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(s.Attributes()))
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func onlySpan(t *testing.T, rec *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	return ended[0]
}

func TestSessionSpan(t *testing.T) {
	tests := []struct {
		name       string
		stopped    string
		tokens     int
		err        error
		wantStatus codes.Code
	}{
		{name: "completed", stopped: "respond", tokens: 3, wantStatus: codes.Unset},
		{name: "transport failure", stopped: "evaluate_each", tokens: 1, err: errors.New("broken pipe"), wantStatus: codes.Error},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := recordSpans(t)

			ctx, span := StartSession(context.Background(), "10.0.0.7:5123")
			if TraceID(ctx) == "" {
				t.Error("session context carries no trace ID")
			}
			EndSession(span, tc.stopped, tc.tokens, tc.err)

			s := onlySpan(t, rec)
			if s.Name() != SpanSessionRun {
				t.Errorf("name = %q, want %q", s.Name(), SpanSessionRun)
			}
			if s.SpanKind() != trace.SpanKindServer {
				t.Errorf("kind = %v, want server", s.SpanKind())
			}
			a := attrs(s)
			if got := a[AttrSessionRemote].AsString(); got != "10.0.0.7:5123" {
				t.Errorf("%s = %q", AttrSessionRemote, got)
			}
			if got := a[AttrSessionStopped].AsString(); got != tc.stopped {
				t.Errorf("%s = %q, want %q", AttrSessionStopped, got, tc.stopped)
			}
			if got := a[AttrSessionTokens].AsInt64(); got != int64(tc.tokens) {
				t.Errorf("%s = %d, want %d", AttrSessionTokens, got, tc.tokens)
			}
			if s.Status().Code != tc.wantStatus {
				t.Errorf("status = %v, want %v", s.Status().Code, tc.wantStatus)
			}
			if tc.err != nil && len(s.Events()) == 0 {
				t.Error("error was not recorded as an event")
			}
		})
	}
}

func TestEvaluateSpan_NestsUnderSession(t *testing.T) {
	rec := recordSpans(t)

	ctx, session := StartSession(context.Background(), "pipe")
	_, eval := StartEvaluate(ctx, 2, "caat")
	EndEvaluate(eval, false, 3)
	EndSession(session, "respond", 2, nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	s, parent := ended[0], ended[1]
	if s.Name() != SpanSpellEvaluate {
		t.Fatalf("first ended span = %q, want %q", s.Name(), SpanSpellEvaluate)
	}
	if s.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("evaluate span is not a child of the session span")
	}
	a := attrs(s)
	if a[AttrSpellIndex].AsInt64() != 2 || a[AttrSpellToken].AsString() != "caat" {
		t.Errorf("token attributes = %v", s.Attributes())
	}
	if a[AttrSpellExact].AsBool() || a[AttrSpellCandidates].AsInt64() != 3 {
		t.Errorf("result attributes = %v", s.Attributes())
	}
}

func TestTraceID_EmptyWithoutSpan(t *testing.T) {
	t.Parallel()

	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
}

func TestLogger_TraceFields(t *testing.T) {
	recordSpans(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("logged trace_id without a span: %s", buf.String())
	}

	buf.Reset()
	ctx, span := StartSession(context.Background(), "pipe")
	Logger(ctx).Info("in session")
	EndSession(span, "respond", 0, nil)

	out := buf.String()
	if !strings.Contains(out, "trace_id="+TraceID(ctx)) {
		t.Errorf("log line missing session trace_id: %s", out)
	}
	if !strings.Contains(out, "span_id=") {
		t.Errorf("log line missing span_id: %s", out)
	}
}
