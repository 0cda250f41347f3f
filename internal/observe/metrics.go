// Package observe provides OpenTelemetry metrics for the beat detection
// pipeline, a Prometheus exporter bridge and the HTTP endpoints that serve
// /metrics, /healthz and /readyz.
//
// Metrics are recorded from the dispatcher goroutine, never from the audio
// path: per-beat values arrive as beat events and frame counts arrive as
// cumulative totals in periodic frame reports. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics
const meterName = "github.com/linuxmatters/beatdetector"

// Metrics holds all OpenTelemetry metric instruments for the detector.
// All fields are safe for concurrent use.
type Metrics struct {
	// Frames counts full frames. Use with attribute:
	//   attribute.String("decision", "process"|"skip")
	Frames metric.Int64Counter

	// Onsets counts analysed frames flagged as onsets
	Onsets metric.Int64Counter

	// Beats counts accepted beats
	Beats metric.Int64Counter

	// DroppedEvents counts events the hand-off queue rejected
	DroppedEvents metric.Int64Counter

	// FrameLatency records the mean per-frame processing time of each
	// report window
	FrameLatency metric.Float64Histogram

	// BeatConfidence records the tempo confidence of accepted beats
	BeatConfidence metric.Float64Histogram

	// BPM is the smoothed tempo at the latest beat
	BPM metric.Float64Gauge

	// Variance is the stability window standard deviation at the latest beat
	Variance metric.Float64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-frame processing; a 64-sample frame at 44.1kHz lasts 1.45ms
var latencyBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

var confidenceBuckets = []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.Frames, err = m.Int64Counter("beatdetector.frames",
		metric.WithDescription("Full frames assembled, by silence gate decision."),
	); err != nil {
		return nil, err
	}
	if met.Onsets, err = m.Int64Counter("beatdetector.onsets",
		metric.WithDescription("Analysed frames flagged as onsets."),
	); err != nil {
		return nil, err
	}
	if met.Beats, err = m.Int64Counter("beatdetector.beats",
		metric.WithDescription("Accepted beats."),
	); err != nil {
		return nil, err
	}
	if met.DroppedEvents, err = m.Int64Counter("beatdetector.dropped_events",
		metric.WithDescription("Events dropped because the sink queue was full."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.FrameLatency, err = m.Float64Histogram("beatdetector.frame.duration",
		metric.WithDescription("Mean per-frame processing time over each report window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BeatConfidence, err = m.Float64Histogram("beatdetector.beat.confidence",
		metric.WithDescription("Tempo confidence of accepted beats."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.BPM, err = m.Float64Gauge("beatdetector.bpm",
		metric.WithDescription("Smoothed tempo at the latest beat."),
		metric.WithUnit("{beat}/min"),
	); err != nil {
		return nil, err
	}
	if met.Variance, err = m.Float64Gauge("beatdetector.bpm.variance",
		metric.WithDescription("Standard deviation of the recent smoothed tempo."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordFrames adds frame counts for one gate decision
func (m *Metrics) RecordFrames(ctx context.Context, decision string, n int64) {
	if n <= 0 {
		return
	}
	m.Frames.Add(ctx, n, metric.WithAttributes(attribute.String("decision", decision)))
}
