package audio

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
)

// State is a connection state reported by a Source
type State int

const (
	StateConnecting State = iota
	StatePaused
	StateStreaming
	StateError
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePaused:
		return "paused"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Handler receives audio from a Source. Process is called synchronously, once
// per chunk, from a single goroutine; the chunk is only valid for the duration
// of the call. StateChanged is called from the same goroutine. An error
// transition carries the cause.
type Handler interface {
	Process(chunk []float32)
	StateChanged(state State, err error)
}

// Stopper is implemented by handlers that can ask their source to stop
// delivering
type Stopper interface {
	Stopped() bool
}

// Source delivers mono float32 chunks to a Handler
type Source interface {
	// Run streams until the input ends, ctx is cancelled, the handler stops
	// or an error occurs. Every resource the source holds is released before
	// Run returns.
	Run(ctx context.Context, h Handler) error

	// Describe returns a short human-readable description for the banner
	Describe() string
}

// Source errors
var (
	ErrInvalidChunking = errors.New("chunk sizes must satisfy 0 < min <= max")
	ErrInvalidSpec     = errors.New("invalid source spec")
)

// Chunking controls how a source slices its stream into callbacks
type Chunking struct {
	SampleRate int  // Delivery rate in Hz
	Min        int  // Smallest chunk in samples
	Max        int  // Largest chunk in samples
	Realtime   bool // Pace delivery to the sample rate
	Seed       uint64
}

// DefaultChunking mirrors what a live capture callback typically delivers:
// 44.1kHz, 64 to 512 samples per callback, paced in real time
func DefaultChunking() Chunking {
	return Chunking{
		SampleRate: 44100,
		Min:        64,
		Max:        512,
		Realtime:   true,
		Seed:       1,
	}
}

// Validate checks the chunking parameters
func (c Chunking) Validate() error {
	if c.Min <= 0 || c.Max < c.Min {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidChunking, c.Min, c.Max)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.SampleRate)
	}
	return nil
}

// deliver drains s into h in chunks of pseudo-random length within
// [c.Min, c.Max]. Stereo input is downmixed to mono. Buffers are allocated
// once and reused for every callback.
func deliver(ctx context.Context, s beep.Streamer, c Chunking, h Handler) error {
	rate := beep.SampleRate(c.SampleRate)
	stereo := make([][2]float64, c.Max)
	mono := make([]float32, c.Max)
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))

	stopper, _ := h.(Stopper)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	h.StateChanged(StateStreaming, nil)
	next := time.Now()
	for {
		if ctx.Err() != nil || (stopper != nil && stopper.Stopped()) {
			h.StateChanged(StateDisconnected, nil)
			return nil
		}

		n := c.Min
		if c.Max > c.Min {
			n += rng.IntN(c.Max - c.Min + 1)
		}
		got, ok := s.Stream(stereo[:n])
		for i := range got {
			mono[i] = float32((stereo[i][0] + stereo[i][1]) / 2)
		}
		if got > 0 {
			h.Process(mono[:got])
		}

		if !ok || got == 0 {
			if err := s.Err(); err != nil {
				err = fmt.Errorf("audio stream failed: %w", err)
				h.StateChanged(StateError, err)
				return err
			}
			h.StateChanged(StateDisconnected, nil)
			return nil
		}

		if !c.Realtime {
			continue
		}
		next = next.Add(rate.D(got))
		if wait := time.Until(next); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
}

// SourceKind selects a Source implementation
type SourceKind string

const (
	KindFile  SourceKind = "file"
	KindClick SourceKind = "click"
)

// DefaultClickBPM is used by "click" without an explicit tempo
const DefaultClickBPM = 120.0

// SourceSpec is a parsed --source value
type SourceSpec struct {
	Kind     SourceKind
	Path     string        // KindFile
	BPM      float64       // KindClick
	Duration time.Duration // KindClick, zero runs until cancelled
}

// ParseSourceSpec parses "click", "click:BPM", "click:BPM:DURATION",
// "file:PATH" or a bare path
func ParseSourceSpec(spec string) (SourceSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return SourceSpec{}, fmt.Errorf("%w: empty", ErrInvalidSpec)
	}

	kind, rest, found := strings.Cut(spec, ":")
	switch {
	case kind == string(KindClick):
		out := SourceSpec{Kind: KindClick, BPM: DefaultClickBPM}
		if !found {
			return out, nil
		}
		bpmStr, durStr, hasDur := strings.Cut(rest, ":")
		bpm, err := strconv.ParseFloat(bpmStr, 64)
		if err != nil || bpm <= 0 || bpm > 1000 {
			return SourceSpec{}, fmt.Errorf("%w: click tempo %q", ErrInvalidSpec, bpmStr)
		}
		out.BPM = bpm
		if hasDur {
			d, err := time.ParseDuration(durStr)
			if err != nil || d <= 0 {
				return SourceSpec{}, fmt.Errorf("%w: click duration %q", ErrInvalidSpec, durStr)
			}
			out.Duration = d
		}
		return out, nil
	case kind == string(KindFile) && found:
		if rest == "" {
			return SourceSpec{}, fmt.Errorf("%w: missing file path", ErrInvalidSpec)
		}
		return SourceSpec{Kind: KindFile, Path: rest}, nil
	default:
		return SourceSpec{Kind: KindFile, Path: spec}, nil
	}
}

// String returns the canonical form of the spec
func (s SourceSpec) String() string {
	if s.Kind == KindClick {
		out := "click:" + strconv.FormatFloat(s.BPM, 'f', -1, 64)
		if s.Duration > 0 {
			out += ":" + s.Duration.String()
		}
		return out
	}
	return "file:" + s.Path
}

// NewSource builds the Source described by spec
func NewSource(spec SourceSpec, c Chunking) (Source, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindClick:
		return &ClickSource{BPM: spec.BPM, Duration: spec.Duration, Chunking: c}, nil
	case KindFile:
		return &FileSource{Path: spec.Path, Chunking: c}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, spec.Kind)
	}
}
