package processor

import "math"

// AdaptiveThreshold derives the onset sensitivity handed to the analysis
// engine from frame energy: Base + Slope*rms, capped at Max. Louder material
// gets a higher bar so it does not over-trigger.
type AdaptiveThreshold struct {
	Base  float64
	Slope float64
	Max   float64
}

// DefaultAdaptiveThreshold returns the tuned controller: 0.15 + 0.15*rms,
// never above 0.30
func DefaultAdaptiveThreshold() AdaptiveThreshold {
	return AdaptiveThreshold{Base: 0.15, Slope: 0.15, Max: 0.30}
}

// Threshold returns the onset threshold for a frame RMS. Negative or NaN RMS
// is treated as zero.
func (a AdaptiveThreshold) Threshold(rms float64) float64 {
	if !(rms > 0) {
		rms = 0
	}
	return math.Min(a.Base+a.Slope*rms, a.Max)
}
