package processor

import "time"

// TelemetryCapacity is the number of per-frame processing durations kept.
// Samples beyond it are dropped so the statistics describe the start of the
// run rather than a sliding window.
const TelemetryCapacity = 1000

// RunStatistics is the end-of-run summary. It is a value copy and never
// shares state with the pipeline.
type RunStatistics struct {
	Counters // Cumulative frame, onset and beat counts

	Runtime        time.Duration
	BeatsPerSecond float64 // Zero when the runtime is zero
	AverageMs      float64 // Mean per-frame processing time
	MinMs          float64
	MaxMs          float64
	Samples        int     // Processing durations the averages are based on
	AverageBPM     float64 // Mean of the accepted BPM history
	DroppedEvents  int64   // Events the hand-off queue could not accept
}

// TelemetryRecorder collects per-frame processing durations into a
// preallocated array. It is purely observational.
type TelemetryRecorder struct {
	start   time.Time
	samples [TelemetryCapacity]time.Duration
	n       int
}

// NewTelemetryRecorder starts a recorder for a run beginning at start
func NewTelemetryRecorder(start time.Time) *TelemetryRecorder {
	return &TelemetryRecorder{start: start}
}

// Record stores d, returning false once the recorder is full
func (r *TelemetryRecorder) Record(d time.Duration) bool {
	if r.n == len(r.samples) {
		return false
	}
	r.samples[r.n] = d
	r.n++
	return true
}

// Len returns the number of stored durations
func (r *TelemetryRecorder) Len() int {
	return r.n
}

// Start returns the run start time
func (r *TelemetryRecorder) Start() time.Time {
	return r.start
}

// Summary builds the run statistics at end
func (r *TelemetryRecorder) Summary(end time.Time, counters Counters, averageBPM float64) RunStatistics {
	stats := RunStatistics{
		Runtime:    end.Sub(r.start),
		Counters:   counters,
		Samples:    r.n,
		AverageBPM: averageBPM,
	}
	if stats.Runtime < 0 {
		stats.Runtime = 0
	}
	if secs := stats.Runtime.Seconds(); secs > 0 {
		stats.BeatsPerSecond = float64(counters.Beats) / secs
	}

	if r.n == 0 {
		return stats
	}
	var total time.Duration
	lo, hi := r.samples[0], r.samples[0]
	for _, d := range r.samples[:r.n] {
		total += d
		lo = min(lo, d)
		hi = max(hi, d)
	}
	stats.AverageMs = milliseconds(total) / float64(r.n)
	stats.MinMs = milliseconds(lo)
	stats.MaxMs = milliseconds(hi)
	return stats
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
