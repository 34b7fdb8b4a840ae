package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// keptSpans survives provider shutdown; the in-memory exporter clears
// itself on Shutdown.
type keptSpans struct{ *tracetest.InMemoryExporter }

func (keptSpans) Shutdown(context.Context) error { return nil }

// TestSetup installs global providers and therefore does not run in
// parallel.
func TestSetup(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	spans := keptSpans{tracetest.NewInMemoryExporter()}
	tel, err := Setup("v1.2.3", WithRegisterer(reg), WithSpanExporter(spans))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx, span := StartSession(context.Background(), "pipe")
	m.SessionsStarted.Add(ctx, 1)
	EndSession(span, "respond", 1, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "spellbook_sessions_started") {
			found = true
		}
	}
	if !found {
		t.Error("sessions counter not exposed on the registry")
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	got := spans.GetSpans()
	if len(got) != 1 || got[0].Name != SpanSessionRun {
		t.Fatalf("exported spans = %v, want one %s", got, SpanSessionRun)
	}
	var version string
	for _, kv := range got[0].Resource.Attributes() {
		if kv.Key == "service.version" {
			version = kv.Value.AsString()
		}
	}
	if version != "v1.2.3" {
		t.Errorf("service.version = %q, want v1.2.3", version)
	}
}
