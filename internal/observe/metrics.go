// Package observe provides application-wide observability primitives for
// spellbook: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and HTTP middleware for the admin endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [Setup] so that metrics can be
// scraped via /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all spellbook metrics.
const meterName = "github.com/MrWong99/spellbook"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RankDuration tracks how long ranking one token against the
	// dictionary takes.
	RankDuration metric.Float64Histogram

	// SessionDuration tracks the lifetime of a client session, including
	// time spent waiting for the client.
	SessionDuration metric.Float64Histogram

	// --- Counters ---

	// SessionsStarted counts accepted sessions. Use with attribute:
	//   attribute.String("transport", ...)
	SessionsStarted metric.Int64Counter

	// TokensResolved counts resolved tokens. Use with attribute:
	//   attribute.String("outcome", "exact"|"added"|"substituted")
	TokensResolved metric.Int64Counter

	// DictionaryInserts counts insert attempts. Use with attribute:
	//   attribute.String("status", "added"|"exists"|"rejected"|"failed")
	DictionaryInserts metric.Int64Counter

	// ValidationFailures counts rejected input lines. Use with attribute:
	//   attribute.String("kind", ...)
	ValidationFailures metric.Int64Counter

	// AcceptErrors counts transient listener accept failures.
	AcceptErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open client sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin HTTP request processing time,
	// labelled by mux route and status. See [Middleware].
	HTTPRequestDuration metric.Float64Histogram
}

// rankBuckets defines histogram bucket boundaries (in seconds) for ranking a
// token against a dictionary of a few thousand words.
var rankBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// sessionBuckets covers interactive sessions, which wait on a human.
var sessionBuckets = []float64{
	0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RankDuration, err = m.Float64Histogram("spellbook.rank.duration",
		metric.WithDescription("Latency of ranking one token against the dictionary."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(rankBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("spellbook.session.duration",
		metric.WithDescription("Lifetime of a client session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsStarted, err = m.Int64Counter("spellbook.sessions.started",
		metric.WithDescription("Total client sessions by transport."),
	); err != nil {
		return nil, err
	}
	if met.TokensResolved, err = m.Int64Counter("spellbook.tokens.resolved",
		metric.WithDescription("Total resolved tokens by outcome."),
	); err != nil {
		return nil, err
	}
	if met.DictionaryInserts, err = m.Int64Counter("spellbook.dictionary.inserts",
		metric.WithDescription("Total dictionary insert attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("spellbook.validation.failures",
		metric.WithDescription("Total rejected input lines by kind."),
	); err != nil {
		return nil, err
	}
	if met.AcceptErrors, err = m.Int64Counter("spellbook.accept.errors",
		metric.WithDescription("Total listener accept failures."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("spellbook.active_sessions",
		metric.WithDescription("Number of open client sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("spellbook.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToken records one resolved token with its outcome label.
func (m *Metrics) RecordToken(ctx context.Context, outcome string) {
	m.TokensResolved.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordInsert records one dictionary insert attempt with its status label.
func (m *Metrics) RecordInsert(ctx context.Context, status string) {
	m.DictionaryInserts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordValidationFailure records one rejected input line.
func (m *Metrics) RecordValidationFailure(ctx context.Context, kind string) {
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSessionStart increments the session counters for transport.
func (m *Metrics) RecordSessionStart(ctx context.Context, transport string) {
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("transport", transport)),
	)
	m.ActiveSessions.Add(ctx, 1)
}

// RecordSessionEnd decrements the active-session gauge and records the
// session's duration in seconds.
func (m *Metrics) RecordSessionEnd(ctx context.Context, seconds float64) {
	m.ActiveSessions.Add(ctx, -1)
	m.SessionDuration.Record(ctx, seconds)
}
