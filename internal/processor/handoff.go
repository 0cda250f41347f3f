package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/beatdetector/internal/audio"
)

// DefaultQueueSize is the hand-off capacity used when none is configured
const DefaultQueueSize = 256

// EventKind identifies the payload of an Event
type EventKind int

const (
	EventBeat   EventKind = iota // Beat holds an accepted beat
	EventReport                  // Report holds periodic frame diagnostics
	EventState                   // State (and Err) hold a source state change
)

// Event is the unit carried from the processing goroutine to the sinks. It is
// passed by value so no live pipeline state is shared.
type Event struct {
	Kind   EventKind
	Beat   BeatEvent
	Report FrameReport
	State  audio.State
	Err    error
}

// FrameReport carries periodic diagnostics from the processing path. The
// latency fields cover the frames since the previous report.
type FrameReport struct {
	Time time.Time
	Counters

	Decision    Decision // Gate decision of the latest frame
	Peak        float64
	RMS         float64
	Threshold   float64 // Last onset threshold handed to the engine
	SmoothedBPM float64
	AverageBPM  float64
	Variance    float64

	MeanLatency time.Duration
	MaxLatency  time.Duration
	Dropped     int64 // Cumulative events dropped by the hand-off
}

// Handoff is a bounded single-producer, single-consumer queue between the
// processing goroutine and the dispatcher. Offer never blocks.
type Handoff struct {
	ch      chan Event
	dropped atomic.Int64
	closed  atomic.Bool
	once    sync.Once
}

// NewHandoff returns a queue holding up to size events
func NewHandoff(size int) *Handoff {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Handoff{ch: make(chan Event, size)}
}

// Offer enqueues ev without blocking. It returns false, and counts a drop,
// when the queue is full or closed.
func (h *Handoff) Offer(ev Event) bool {
	if h.closed.Load() {
		h.dropped.Add(1)
		return false
	}
	select {
	case h.ch <- ev:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Events returns the receive side of the queue
func (h *Handoff) Events() <-chan Event {
	return h.ch
}

// Dropped returns the number of events rejected so far
func (h *Handoff) Dropped() int64 {
	return h.dropped.Load()
}

// Len returns the number of queued events
func (h *Handoff) Len() int {
	return len(h.ch)
}

// Close ends the stream. It must only be called once the producer has
// stopped offering; later calls are no-ops.
func (h *Handoff) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.ch)
	})
}

// EventSink consumes events on the dispatcher goroutine. Errors are logged by
// the dispatcher and never reach the processing path.
type EventSink interface {
	HandleBeat(BeatEvent) error
	HandleReport(FrameReport) error
}

// StateSink is implemented by sinks that want source state transitions
type StateSink interface {
	HandleState(state audio.State, err error) error
}

// Dispatcher drains a Handoff and fans each event out to its sinks
type Dispatcher struct {
	queue  *Handoff
	sinks  []EventSink
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher for queue. A nil logger uses
// slog.Default().
func NewDispatcher(queue *Handoff, logger *slog.Logger, sinks ...EventSink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{queue: queue, sinks: sinks, logger: logger}
}

// Run delivers events until the queue is closed and drained. It always
// returns nil; sink failures are logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	for ev := range d.queue.Events() {
		d.dispatch(ctx, ev)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventBeat:
		for _, s := range d.sinks {
			if err := s.HandleBeat(ev.Beat); err != nil {
				d.logger.ErrorContext(ctx, "beat sink failed", "sink", sinkName(s), "error", err)
			}
		}
	case EventReport:
		r := ev.Report
		d.logger.DebugContext(ctx, "frame report",
			"frames", r.Frames,
			"skipped", r.Skipped,
			"onsets", r.Onsets,
			"beats", r.Beats,
			"decision", r.Decision,
			"peak", r.Peak,
			"rms", r.RMS,
			"threshold", r.Threshold,
			"bpm", r.SmoothedBPM,
			"latency_max", r.MaxLatency,
			"dropped", r.Dropped,
		)
		for _, s := range d.sinks {
			if err := s.HandleReport(r); err != nil {
				d.logger.ErrorContext(ctx, "report sink failed", "sink", sinkName(s), "error", err)
			}
		}
	case EventState:
		level := slog.LevelInfo
		if ev.Err != nil {
			level = slog.LevelError
		}
		d.logger.Log(ctx, level, "audio source state", "state", ev.State, "error", ev.Err)
		for _, s := range d.sinks {
			ss, ok := s.(StateSink)
			if !ok {
				continue
			}
			if err := ss.HandleState(ev.State, ev.Err); err != nil {
				d.logger.ErrorContext(ctx, "state sink failed", "sink", sinkName(s), "error", err)
			}
		}
	}
}

func sinkName(s EventSink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "sink"
}
