package processor

import "math"

// DefaultSilenceFloor is the peak amplitude below which a frame is treated as
// silence (-40 dBFS)
const DefaultSilenceFloor = 0.01

// Decision is the silence gate verdict for one frame
type Decision int

const (
	DecisionProcess Decision = iota // Frame is analysed
	DecisionSkip                    // Frame is silent and never reaches the engine
)

func (d Decision) String() string {
	switch d {
	case DecisionProcess:
		return "process"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// FrameStats holds the amplitude statistics of a single frame
type FrameStats struct {
	Peak float64 // Maximum absolute sample value
	RMS  float64 // Root mean square level
}

// SilenceGate decides whether a frame carries enough signal to analyse
type SilenceGate struct {
	Floor float64 // Frames whose peak is below Floor are skipped
}

// DefaultSilenceGate returns a gate at DefaultSilenceFloor
func DefaultSilenceGate() SilenceGate {
	return SilenceGate{Floor: DefaultSilenceFloor}
}

// Evaluate computes the frame statistics and the gate decision. An empty
// frame is skipped.
func (g SilenceGate) Evaluate(frame []float64) (FrameStats, Decision) {
	if len(frame) == 0 {
		return FrameStats{}, DecisionSkip
	}

	var peak, sum float64
	for _, s := range frame {
		if a := math.Abs(s); a > peak {
			peak = a
		}
		sum += s * s
	}
	stats := FrameStats{
		Peak: peak,
		RMS:  math.Sqrt(sum / float64(len(frame))),
	}

	if peak < g.Floor {
		return stats, DecisionSkip
	}
	return stats, DecisionProcess
}
