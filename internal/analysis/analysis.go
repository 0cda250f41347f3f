// Package analysis defines the spectral analysis engine boundary used by the
// beat detector: an Engine takes one fixed-size frame plus an onset
// sensitivity and reports onset, tempo, confidence and optional pitch.
package analysis

import (
	"errors"
	"fmt"
)

// Method selects the onset detection function used by the spectral engine
type Method string

const (
	MethodHFC      Method = "hfc"      // High Frequency Content
	MethodEnergy   Method = "energy"   // Spectral energy
	MethodSpecFlux Method = "specflux" // Positive spectral flux
	MethodComplex  Method = "complex"  // Accepted for compatibility, computed as specflux
)

// IsValid reports whether m is a recognised detection method.
func (m Method) IsValid() bool {
	switch m {
	case MethodHFC, MethodEnergy, MethodSpecFlux, MethodComplex:
		return true
	}
	return false
}

// Description returns the human-readable name used in the startup banner.
func (m Method) Description() string {
	switch m {
	case MethodHFC:
		return "HFC (High Frequency Content)"
	case MethodEnergy:
		return "Energy"
	case MethodSpecFlux, MethodComplex:
		return "Spectral flux"
	default:
		return string(m)
	}
}

// Result is the per-frame output of an Engine. It is consumed immediately by
// the decision stage and never retained.
type Result struct {
	BPM        float64 // Current tempo estimate (beats per minute)
	Confidence float64 // Tempo confidence, nominally 0..1
	IsOnset    bool    // An onset was detected in this frame
	PitchHz    float64 // Detected pitch in Hz, 0 when disabled or unvoiced
}

// Engine analyses fixed-size frames. Analyze is called synchronously once per
// processed frame, in arrival order, from a single goroutine.
type Engine interface {
	// Analyze runs the onset, tempo and (optional) pitch passes over frame.
	// onsetThreshold overrides the onset peak-picking sensitivity for this
	// frame only.
	Analyze(frame []float64, onsetThreshold float64) Result

	// Close releases engine resources. Calling Close more than once is safe.
	Close() error
}

// Validation errors returned by Config.Validate
var (
	ErrUnknownMethod     = errors.New("unknown detection method")
	ErrInvalidHopSize    = errors.New("hop size must be positive")
	ErrInvalidWindowSize = errors.New("window size must be at least the hop size")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

// Config configures an Engine once at startup
type Config struct {
	Method     Method
	HopSize    int // Samples per analysis frame (the buffer size)
	WindowSize int // FFT size, typically HopSize * 8
	SampleRate int

	OnsetThreshold float64 // Default onset sensitivity, overridden per frame
	TempoThreshold float64 // Minimum normalised autocorrelation peak to report a tempo
	MinIOIMs       float64 // Minimum inter-onset interval in milliseconds
	SilenceDB      float64 // Frames below this level never report onsets

	Pitch          bool    // Enable the pitch sub-engine
	PitchTolerance float64 // YIN threshold (lower is stricter)
	RejectHum      bool    // Suppress pitches that sit on the mains frequency
	MainsHz        float64 // Local mains frequency (50 or 60)
}

// DefaultConfig returns the engine configuration for a given buffer size,
// matching the detector's tuned defaults: HFC onsets, FFT size of eight
// buffers, 0.2 onset/tempo thresholds, 25ms minimum inter-onset interval and
// a -45 dB silence floor.
func DefaultConfig(bufferSize int) Config {
	return Config{
		Method:         MethodHFC,
		HopSize:        bufferSize,
		WindowSize:     bufferSize * 8,
		SampleRate:     44100,
		OnsetThreshold: 0.2,
		TempoThreshold: 0.2,
		MinIOIMs:       25,
		SilenceDB:      -45,
		PitchTolerance: 0.15,
		MainsHz:        50,
	}
}

// Validate checks that the configuration can build an engine
func (c Config) Validate() error {
	var errs []error
	if !c.Method.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method))
	}
	if c.HopSize <= 0 {
		errs = append(errs, ErrInvalidHopSize)
	}
	if c.WindowSize < c.HopSize {
		errs = append(errs, ErrInvalidWindowSize)
	}
	if c.SampleRate <= 0 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	return errors.Join(errs...)
}
