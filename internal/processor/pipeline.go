// Package processor implements the streaming beat decision pipeline: frame
// accumulation, the silence gate, the adaptive onset threshold, beat
// acceptance with BPM smoothing and stability tracking, and run telemetry.
//
// The pipeline runs on the audio source's goroutine. It never blocks and does
// not allocate in steady state; everything slow happens behind a Handoff on
// the Dispatcher's goroutine.
package processor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/beatdetector/internal/analysis"
	"github.com/linuxmatters/beatdetector/internal/audio"
)

// DefaultReportEvery is the number of frames between diagnostic reports
const DefaultReportEvery = 200

// Pipeline construction errors
var (
	ErrNoEngine  = errors.New("analysis engine is required")
	ErrNoHandoff = errors.New("event hand-off is required")
)

// Options configures a Pipeline
type Options struct {
	FrameSize int
	Engine    analysis.Engine
	Handoff   *Handoff

	Gate      SilenceGate
	Threshold AdaptiveThreshold
	Decision  DecisionConfig

	ReportEvery int              // Frames between reports, zero disables them
	Now         func() time.Time // Clock, defaults to time.Now
}

// DefaultOptions returns options with the tuned gate, threshold and decision
// parameters. Engine and Handoff must still be set.
func DefaultOptions(frameSize int) Options {
	return Options{
		FrameSize:   frameSize,
		Gate:        DefaultSilenceGate(),
		Threshold:   DefaultAdaptiveThreshold(),
		Decision:    DefaultDecisionConfig(),
		ReportEvery: DefaultReportEvery,
	}
}

// Pipeline is the per-chunk processing path. It implements audio.Handler.
// Process and StateChanged must be called from one goroutine; Stop, Stopped
// and Err are safe from any goroutine.
type Pipeline struct {
	acc       *FrameAccumulator
	gate      SilenceGate
	threshold AdaptiveThreshold
	engine    analysis.Engine
	decision  *BeatDecisionEngine
	telemetry *TelemetryRecorder
	handoff   *Handoff
	now       func() time.Time

	reportEvery int64
	frames      int64
	skipped     int64

	// Since the last report
	lastStats     FrameStats
	lastDecision  Decision
	lastThreshold float64
	windowTotal   time.Duration
	windowMax     time.Duration
	windowFrames  int64

	stopped   atomic.Bool
	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error
}

// NewPipeline validates every sub-resource and returns a ready pipeline. On
// error nothing needs releasing; the engine stays owned by the caller.
func NewPipeline(opts Options) (*Pipeline, error) {
	var errs []error
	acc, err := NewFrameAccumulator(opts.FrameSize)
	if err != nil {
		errs = append(errs, err)
	}
	decision, err := NewBeatDecisionEngine(opts.Decision)
	if err != nil {
		errs = append(errs, err)
	}
	if opts.Engine == nil {
		errs = append(errs, ErrNoEngine)
	}
	if opts.Handoff == nil {
		errs = append(errs, ErrNoHandoff)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		acc:         acc,
		gate:        opts.Gate,
		threshold:   opts.Threshold,
		engine:      opts.Engine,
		decision:    decision,
		telemetry:   NewTelemetryRecorder(now()),
		handoff:     opts.Handoff,
		now:         now,
		reportEvery: int64(max(opts.ReportEvery, 0)),
	}, nil
}

// Process implements audio.Handler. Chunks are split into frames; each full
// frame runs through the gate, threshold, engine and decision in order.
func (p *Pipeline) Process(chunk []float32) {
	for len(chunk) > 0 {
		// No new frame assembly once stopped
		if p.stopped.Load() {
			return
		}
		n, full := p.acc.Fill(chunk)
		chunk = chunk[n:]
		if !full {
			return
		}
		p.processFrame(p.acc.Frame())
		p.acc.Reset()
	}
}

func (p *Pipeline) processFrame(frame []float64) {
	start := p.now()
	p.frames++

	stats, decision := p.gate.Evaluate(frame)
	if decision == DecisionSkip {
		p.skipped++
	} else {
		threshold := p.threshold.Threshold(stats.RMS)
		p.lastThreshold = threshold
		result := p.engine.Analyze(frame, threshold)
		if ev, ok := p.decision.Decide(result, stats, start); ok {
			p.handoff.Offer(Event{Kind: EventBeat, Beat: ev})
		}
	}

	elapsed := p.now().Sub(start)
	p.telemetry.Record(elapsed)

	p.lastStats = stats
	p.lastDecision = decision
	p.windowTotal += elapsed
	p.windowMax = max(p.windowMax, elapsed)
	p.windowFrames++
	if p.reportEvery > 0 && p.frames%p.reportEvery == 0 {
		p.report(start)
	}
}

func (p *Pipeline) report(at time.Time) {
	r := FrameReport{
		Time:        at,
		Counters:    p.counters(),
		Decision:    p.lastDecision,
		Peak:        p.lastStats.Peak,
		RMS:         p.lastStats.RMS,
		Threshold:   p.lastThreshold,
		SmoothedBPM: p.decision.SmoothedBPM(),
		AverageBPM:  p.decision.AverageBPM(),
		Variance:    p.decision.Variance(),
		MaxLatency:  p.windowMax,
		Dropped:     p.handoff.Dropped(),
	}
	if p.windowFrames > 0 {
		r.MeanLatency = p.windowTotal / time.Duration(p.windowFrames)
	}
	p.handoff.Offer(Event{Kind: EventReport, Report: r})

	p.windowTotal, p.windowMax, p.windowFrames = 0, 0, 0
}

// StateChanged implements audio.Handler. An error transition stops the
// pipeline and discards the partially accumulated frame.
func (p *Pipeline) StateChanged(state audio.State, err error) {
	if state == audio.StateError {
		p.Stop()
		p.acc.Discard()
		if err != nil {
			p.mu.Lock()
			if p.err == nil {
				p.err = err
			}
			p.mu.Unlock()
		}
	}
	p.handoff.Offer(Event{Kind: EventState, State: state, Err: err})
}

// Stop ends frame assembly. A frame that is already full still completes its
// decision. Stop is idempotent.
func (p *Pipeline) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether Stop has been called. Sources poll it to release
// their input early.
func (p *Pipeline) Stopped() bool {
	return p.stopped.Load()
}

// Err returns the first source error seen, if any
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Statistics returns the run summary at end. Call it once the source has
// returned.
func (p *Pipeline) Statistics(end time.Time) RunStatistics {
	stats := p.telemetry.Summary(end, p.counters(), p.decision.AverageBPM())
	stats.DroppedEvents = p.handoff.Dropped()
	return stats
}

// Decision exposes the decision engine for inspection once the source has
// returned
func (p *Pipeline) Decision() *BeatDecisionEngine {
	return p.decision
}

// FrameSize returns the analysis frame size
func (p *Pipeline) FrameSize() int {
	return p.acc.Size()
}

// Close releases the analysis engine. It is safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.engine.Close()
	})
	return p.closeErr
}

func (p *Pipeline) counters() Counters {
	c := p.decision.Counters()
	c.Frames = p.frames
	c.Skipped = p.skipped
	return c
}

var _ audio.Handler = (*Pipeline)(nil)
