package observe

import (
	"context"
	"sync/atomic"

	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// MetricsSink records pipeline events into Metrics. Reports carry cumulative
// counters, so the sink keeps the previous totals and records the
// difference. It also tracks the source state for the readiness probe.
type MetricsSink struct {
	metrics *Metrics
	last    processor.Counters
	dropped int64
	state   atomic.Int32
}

// NewMetricsSink returns a sink recording into m
func NewMetricsSink(m *Metrics) *MetricsSink {
	s := &MetricsSink{metrics: m}
	s.state.Store(int32(audio.StateConnecting))
	return s
}

// Name implements the dispatcher's sink naming
func (s *MetricsSink) Name() string { return "metrics" }

// HandleBeat implements processor.EventSink
func (s *MetricsSink) HandleBeat(ev processor.BeatEvent) error {
	ctx := context.Background()
	s.metrics.BPM.Record(ctx, ev.BPM)
	if ev.Variance < processor.UnknownVariance {
		s.metrics.Variance.Record(ctx, ev.Variance)
	}
	s.metrics.BeatConfidence.Record(ctx, ev.Confidence)
	return nil
}

// HandleReport implements processor.EventSink
func (s *MetricsSink) HandleReport(r processor.FrameReport) error {
	ctx := context.Background()
	c := r.Counters

	s.metrics.RecordFrames(ctx, processor.DecisionProcess.String(), c.Analyzed-s.last.Analyzed)
	s.metrics.RecordFrames(ctx, processor.DecisionSkip.String(), c.Skipped-s.last.Skipped)
	if n := c.Onsets - s.last.Onsets; n > 0 {
		s.metrics.Onsets.Add(ctx, n)
	}
	if n := c.Beats - s.last.Beats; n > 0 {
		s.metrics.Beats.Add(ctx, n)
	}
	if n := r.Dropped - s.dropped; n > 0 {
		s.metrics.DroppedEvents.Add(ctx, n)
	}
	if r.MeanLatency > 0 {
		s.metrics.FrameLatency.Record(ctx, r.MeanLatency.Seconds())
	}

	s.last = c
	s.dropped = r.Dropped
	return nil
}

// Flush records the final totals, which arrive after the last report
func (s *MetricsSink) Flush(c processor.Counters, dropped int64) {
	_ = s.HandleReport(processor.FrameReport{Counters: c, Dropped: dropped})
}

// HandleState implements processor.StateSink
func (s *MetricsSink) HandleState(state audio.State, _ error) error {
	s.state.Store(int32(state))
	return nil
}

// State returns the last source state seen
func (s *MetricsSink) State() audio.State {
	return audio.State(s.state.Load())
}

var (
	_ processor.EventSink = (*MetricsSink)(nil)
	_ processor.StateSink = (*MetricsSink)(nil)
)
