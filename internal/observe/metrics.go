// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, trace-aware logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// the Prometheus bridge set up by [InitProvider], so they can be scraped from
// /metrics. [DefaultMetrics] is a package-level instance bound to the global
// meter provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/eric-livezey/void-bot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Fetch & cache ---

	// FetchDuration tracks the wall time of a deduplicated fetch, all
	// attempts included.
	FetchDuration metric.Float64Histogram

	// FetchAttempts counts individual fetch tool invocations. Attribute:
	//   attribute.String("status", "ok"|"error")
	FetchAttempts metric.Int64Counter

	// CacheLookups counts cache probes. Attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// FetchDedupJoins counts callers that joined an already in-flight fetch
	// instead of starting their own.
	FetchDedupJoins metric.Int64Counter

	// --- Metadata ---

	// MetadataDuration tracks metadata lookup latency. Attributes:
	//   attribute.String("kind", "query"|"id"|"playlist"|"search")
	MetadataDuration metric.Float64Histogram

	// MetadataLookups counts metadata lookups. Attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	MetadataLookups metric.Int64Counter

	// --- Playback ---

	// TracksPlayed counts tracks that started playing.
	TracksPlayed metric.Int64Counter

	// TracksFailed counts tracks that were skipped because of a failure.
	// Attribute: attribute.String("reason", "resolution"|"sink"|"connection")
	TracksFailed metric.Int64Counter

	// PlayersActive tracks the number of players in the registry.
	PlayersActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// fetchBuckets are histogram boundaries (seconds) sized for audio downloads.
var fetchBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// lookupBuckets are histogram boundaries (seconds) for metadata lookups.
var lookupBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using mp. Returns an error
// if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FetchDuration, err = m.Float64Histogram("voidbot.fetch.duration",
		metric.WithDescription("Wall time of a deduplicated audio fetch including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(fetchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FetchAttempts, err = m.Int64Counter("voidbot.fetch.attempts",
		metric.WithDescription("Fetch tool invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("voidbot.cache.lookups",
		metric.WithDescription("Audio cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.FetchDedupJoins, err = m.Int64Counter("voidbot.fetch.dedup_joins",
		metric.WithDescription("Callers that joined an in-flight fetch."),
	); err != nil {
		return nil, err
	}

	if met.MetadataDuration, err = m.Float64Histogram("voidbot.metadata.duration",
		metric.WithDescription("Latency of metadata lookups by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(lookupBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MetadataLookups, err = m.Int64Counter("voidbot.metadata.lookups",
		metric.WithDescription("Metadata lookups by kind and status."),
	); err != nil {
		return nil, err
	}

	if met.TracksPlayed, err = m.Int64Counter("voidbot.tracks.played",
		metric.WithDescription("Tracks that started playing."),
	); err != nil {
		return nil, err
	}
	if met.TracksFailed, err = m.Int64Counter("voidbot.tracks.failed",
		metric.WithDescription("Tracks skipped because of a failure, by reason."),
	); err != nil {
		return nil, err
	}
	if met.PlayersActive, err = m.Int64UpDownCounter("voidbot.players.active",
		metric.WithDescription("Number of registered guild players."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voidbot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFetchAttempt counts one fetch tool invocation.
func (m *Metrics) RecordFetchAttempt(ctx context.Context, err error) {
	m.FetchAttempts.Add(ctx, 1, metric.WithAttributes(Attr("status", status(err))))
}

// RecordCacheLookup counts one cache probe.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(Attr("result", result)))
}

// RecordMetadataLookup records the latency and outcome of one metadata lookup.
func (m *Metrics) RecordMetadataLookup(ctx context.Context, kind string, seconds float64, err error) {
	m.MetadataDuration.Record(ctx, seconds, metric.WithAttributes(Attr("kind", kind)))
	m.MetadataLookups.Add(ctx, 1, metric.WithAttributes(
		Attr("kind", kind),
		Attr("status", status(err)),
	))
}

// RecordTrackFailed counts one track skipped for reason.
func (m *Metrics) RecordTrackFailed(ctx context.Context, reason string) {
	m.TracksFailed.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
