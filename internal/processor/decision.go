package processor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/linuxmatters/beatdetector/internal/analysis"
)

// UnknownVariance is reported before any beat has been accepted
const UnknownVariance = 999.0

// Decision engine validation errors
var (
	ErrInvalidBPMRange    = errors.New("bpm_min must be below bpm_max")
	ErrInvalidSmoothing   = errors.New("smoothing must be in [0, 1)")
	ErrInvalidHistorySize = errors.New("history sizes must be positive")
)

// DecisionConfig tunes beat acceptance, smoothing and stability tracking
type DecisionConfig struct {
	BPMMin    float64 // Readings must be strictly inside (BPMMin, BPMMax) to update the estimate
	BPMMax    float64
	Smoothing float64 // Weight kept from the previous estimate

	ConfidenceThreshold float64 // Confidence must exceed this for a beat
	VarianceLimit       float64 // Tempo is stable when the stability window's spread is below this

	HistorySize     int // Accepted BPM values kept for the running average
	StabilityWindow int // Accepted BPM values used for variance

	Pitch bool // Copy the engine pitch onto beat events
}

// DefaultDecisionConfig returns the tuned decision parameters
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		BPMMin:              60,
		BPMMax:              200,
		Smoothing:           0.7,
		ConfidenceThreshold: 0.5,
		VarianceLimit:       5.0,
		HistorySize:         20,
		StabilityWindow:     5,
	}
}

// Validate checks the configuration
func (c DecisionConfig) Validate() error {
	var errs []error
	if !(c.BPMMin < c.BPMMax) {
		errs = append(errs, fmt.Errorf("%w: %v >= %v", ErrInvalidBPMRange, c.BPMMin, c.BPMMax))
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSmoothing, c.Smoothing))
	}
	if c.HistorySize <= 0 || c.StabilityWindow <= 0 {
		errs = append(errs, ErrInvalidHistorySize)
	}
	return errors.Join(errs...)
}

// BeatEvent is an accepted beat. It is a value type and safe to hand to other
// goroutines.
type BeatEvent struct {
	Time       time.Time
	BPM        float64 // Smoothed tempo
	AverageBPM float64 // Mean of the BPM history including this beat
	Confidence float64
	PitchHz    float64 // Zero when pitch detection is disabled or unvoiced
	Amplitude  float64 // Frame peak amplitude
	Variance   float64 // Standard deviation of the stability window
	Stable     bool    // Variance is below the configured limit
}

// Counters are the cumulative frame and beat counts of a run
type Counters struct {
	Frames   int64 // Full frames assembled
	Skipped  int64 // Frames rejected by the silence gate
	Analyzed int64 // Frames passed to the analysis engine
	Onsets   int64 // Analysed frames the engine flagged as onsets
	Beats    int64 // Accepted beats
}

// BeatDecisionEngine turns raw engine output into smoothed, stability-tracked
// beat events. It is driven from a single goroutine and never allocates after
// construction.
type BeatDecisionEngine struct {
	cfg   DecisionConfig
	blend float64

	smoothed  float64
	history   *History
	stability *History
	counters  Counters
}

// NewBeatDecisionEngine validates cfg and allocates the bounded histories
func NewBeatDecisionEngine(cfg DecisionConfig) (*BeatDecisionEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision config: %w", err)
	}
	return &BeatDecisionEngine{
		cfg:       cfg,
		blend:     1 - cfg.Smoothing,
		history:   NewHistory(cfg.HistorySize),
		stability: NewHistory(cfg.StabilityWindow),
	}, nil
}

// Decide folds one analysed frame into the engine state. It returns the beat
// event and true when the frame is accepted as a beat.
func (e *BeatDecisionEngine) Decide(result analysis.Result, stats FrameStats, at time.Time) (BeatEvent, bool) {
	e.smooth(result.BPM)

	e.counters.Analyzed++
	if result.IsOnset {
		e.counters.Onsets++
	}

	if !result.IsOnset || !(result.Confidence > e.cfg.ConfidenceThreshold) {
		return BeatEvent{}, false
	}

	e.history.Push(e.smoothed)
	e.stability.Push(e.smoothed)
	e.counters.Beats++

	variance := e.Variance()
	ev := BeatEvent{
		Time:       at,
		BPM:        e.smoothed,
		AverageBPM: e.history.Mean(),
		Confidence: result.Confidence,
		Amplitude:  stats.Peak,
		Variance:   variance,
		Stable:     variance < e.cfg.VarianceLimit,
	}
	if e.cfg.Pitch {
		ev.PitchHz = result.PitchHz
	}
	return ev, true
}

// smooth applies the exponential moving average to in-range readings. The
// first reading bootstraps the estimate even when out of range; later
// out-of-range readings are ignored.
func (e *BeatDecisionEngine) smooth(bpm float64) {
	switch {
	case bpm > e.cfg.BPMMin && bpm < e.cfg.BPMMax:
		e.smoothed = e.cfg.Smoothing*e.smoothed + e.blend*bpm
	case e.smoothed == 0 && !math.IsNaN(bpm) && !math.IsInf(bpm, 0):
		e.smoothed = bpm
	}
}

// SmoothedBPM returns the current smoothed tempo, 0 when unset
func (e *BeatDecisionEngine) SmoothedBPM() float64 {
	return e.smoothed
}

// AverageBPM returns the mean of the accepted BPM history, 0 when empty
func (e *BeatDecisionEngine) AverageBPM() float64 {
	return e.history.Mean()
}

// Variance returns the population standard deviation of the stability
// window, or UnknownVariance before the first beat
func (e *BeatDecisionEngine) Variance() float64 {
	if e.stability.Len() == 0 {
		return UnknownVariance
	}
	return e.stability.StdDev()
}

// IsStable reports whether the stability window spread is below the limit
func (e *BeatDecisionEngine) IsStable() bool {
	return e.Variance() < e.cfg.VarianceLimit
}

// Counters returns the analysed, onset and beat counts. Frames and Skipped
// are maintained by the pipeline and are zero here.
func (e *BeatDecisionEngine) Counters() Counters {
	return e.counters
}

// History returns a copy of the accepted BPM history, oldest first
func (e *BeatDecisionEngine) History() []float64 {
	return e.history.Values()
}

// StabilityWindow returns a copy of the stability window, oldest first
func (e *BeatDecisionEngine) StabilityWindow() []float64 {
	return e.stability.Values()
}
