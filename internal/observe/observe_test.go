package observe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue sums an Int64 counter, optionally filtered by decision.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, decision string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if decision != "" {
			v, _ := dp.Attributes.Value(attribute.Key("decision"))
			if v.AsString() != decision {
				continue
			}
		}
		total += dp.Value
	}
	return total
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) float64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	g, ok := met.Data.(metricdata.Gauge[float64])
	if !ok || len(g.DataPoints) == 0 {
		t.Fatalf("metric %q is %T with no points", name, met.Data)
	}
	return g.DataPoints[0].Value
}

func report(frames, skipped, analyzed, onsets, beats, dropped int64, latency time.Duration) processor.FrameReport {
	r := processor.FrameReport{Dropped: dropped, MeanLatency: latency}
	r.Frames, r.Skipped, r.Analyzed, r.Onsets, r.Beats = frames, skipped, analyzed, onsets, beats
	return r
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestMetricsSink_ReportDeltas(t *testing.T) {
	m, reader := newTestMetrics(t)
	s := NewMetricsSink(m)

	_ = s.HandleReport(report(200, 50, 150, 10, 4, 0, 40*time.Microsecond))
	_ = s.HandleReport(report(400, 120, 280, 25, 9, 2, 60*time.Microsecond))
	s.Flush(processor.Counters{Frames: 450, Skipped: 130, Analyzed: 320, Onsets: 27, Beats: 10}, 3)

	rm := collect(t, reader)
	tests := []struct {
		name     string
		decision string
		want     int64
	}{
		{"beatdetector.frames", "process", 320},
		{"beatdetector.frames", "skip", 130},
		{"beatdetector.frames", "", 450},
		{"beatdetector.onsets", "", 27},
		{"beatdetector.beats", "", 10},
		{"beatdetector.dropped_events", "", 3},
	}
	for _, tt := range tests {
		if got := counterValue(t, rm, tt.name, tt.decision); got != tt.want {
			t.Errorf("%s{decision=%q} = %d, want %d", tt.name, tt.decision, got, tt.want)
		}
	}

	met := findMetric(rm, "beatdetector.frame.duration")
	if met == nil {
		t.Fatal("frame duration histogram not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("latency samples = %d, want 2 (flush carries no latency)", got)
	}
}

func TestMetricsSink_Beat(t *testing.T) {
	m, reader := newTestMetrics(t)
	s := NewMetricsSink(m)

	_ = s.HandleBeat(processor.BeatEvent{BPM: 118, Confidence: 0.7, Variance: processor.UnknownVariance})
	_ = s.HandleBeat(processor.BeatEvent{BPM: 121.5, Confidence: 0.9, Variance: 2.25})

	rm := collect(t, reader)
	if got := gaugeValue(t, rm, "beatdetector.bpm"); got != 121.5 {
		t.Errorf("bpm gauge = %v, want 121.5", got)
	}
	if got := gaugeValue(t, rm, "beatdetector.bpm.variance"); got != 2.25 {
		t.Errorf("variance gauge = %v, want 2.25", got)
	}
	hist := findMetric(rm, "beatdetector.beat.confidence").Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("confidence samples = %d, want 2", got)
	}
}

func TestMetricsSink_VarianceSentinelSkipped(t *testing.T) {
	m, reader := newTestMetrics(t)
	s := NewMetricsSink(m)
	_ = s.HandleBeat(processor.BeatEvent{BPM: 100, Confidence: 0.8, Variance: processor.UnknownVariance})

	if met := findMetric(collect(t, reader), "beatdetector.bpm.variance"); met != nil {
		t.Errorf("variance recorded for the no-data sentinel: %+v", met.Data)
	}
}

func TestMetricsSink_State(t *testing.T) {
	m, _ := newTestMetrics(t)
	s := NewMetricsSink(m)
	if s.State() != audio.StateConnecting {
		t.Errorf("initial state = %v, want connecting", s.State())
	}
	_ = s.HandleState(audio.StateStreaming, nil)
	if s.State() != audio.StateStreaming {
		t.Errorf("state = %v, want streaming", s.State())
	}
}

func TestHealthEndpoints(t *testing.T) {
	m, _ := newTestMetrics(t)
	sink := NewMetricsSink(m)

	mux := http.NewServeMux()
	NewHealth(StreamingCheck(sink)).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) (int, result) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		var res result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return resp.StatusCode, res
	}

	if code, res := get("/healthz"); code != http.StatusOK || res.Status != "ok" {
		t.Errorf("/healthz = %d %+v", code, res)
	}

	code, res := get("/readyz")
	if code != http.StatusServiceUnavailable || res.Status != "fail" {
		t.Errorf("/readyz while connecting = %d %+v", code, res)
	}
	if !strings.Contains(res.Checks["audio"], "connecting") {
		t.Errorf("audio check = %q", res.Checks["audio"])
	}

	_ = sink.HandleState(audio.StateStreaming, nil)
	if code, res := get("/readyz"); code != http.StatusOK || res.Checks["audio"] != "ok" {
		t.Errorf("/readyz while streaming = %d %+v", code, res)
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	h := NewHealth(Checker{Name: "disk", Check: func(context.Context) error { return errors.New("full") }})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fail: full") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServerWithPrometheus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	sink := NewMetricsSink(m)
	_ = sink.HandleReport(report(10, 2, 8, 3, 1, 0, 0))

	srv, err := Listen("127.0.0.1:0", provider.Handler(), NewHealth(), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	for _, want := range []string{"beatdetector_frames", "beatdetector_beats", `decision="skip"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	resp, err = http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenBadAddress(t *testing.T) {
	if _, err := Listen("256.0.0.1:99999", nil, nil, nil); err == nil {
		t.Error("expected error for an invalid address")
	}
}
