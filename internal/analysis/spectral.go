package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/linuxmatters/beatdetector/internal/mains"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectral engine tuning constants
const (
	peakHistoryLen  = 8    // ODF values used for the adaptive peak-picking threshold
	odfFloor        = 1e-6 // ODF values below this never count as onsets
	tempoHistorySec = 6.0  // Seconds of onset envelope kept for tempo estimation
	tempoUpdateSec  = 0.5  // Tempo is re-estimated this often
	tempoMinBPM     = 60.0 // Autocorrelation lag search range
	tempoMaxBPM     = 200.0
	tempoPeakRatio  = 0.9 // Prefer the shortest lag within this ratio of the best peak
	maxEnvelopeLen  = 4096

	pitchMaxWindow = 2048 // Samples examined by the YIN pitch pass
	pitchMinHz     = 40.0
	pitchMaxHz     = 2000.0
)

// SpectralEngine is the built-in Engine. It keeps a sliding window of
// WindowSize samples advanced by HopSize per frame, computes a windowed FFT,
// derives an onset detection function (ODF) and estimates tempo from the
// autocorrelation of the ODF envelope.
type SpectralEngine struct {
	cfg Config

	hann     []float64
	ring     []float64 // Sliding analysis window, oldest sample first
	windowed []float64
	mag      []float64
	prevMag  []float64

	// Onset peak picking
	peakHist     [peakHistoryLen]float64
	peakScratch  [peakHistoryLen]float64
	peakCount    int
	peakPos      int
	prevODF      float64
	frame        int64
	lastOnset    int64
	minIOIFrames int64

	// Tempo estimation over the ODF envelope
	envelope   []float64
	envScratch []float64
	envPos     int
	envCount   int
	tempoEvery int
	sinceTempo int
	minLag     int
	maxLag     int
	hopSeconds float64
	bpm        float64
	confidence float64

	// Pitch (YIN)
	yinSize int
	yinDiff []float64
}

// NewSpectralEngine validates cfg and allocates the window, envelope and pitch
// buffers. The FFT output is still allocated per frame by go-dsp.
func NewSpectralEngine(cfg Config) (*SpectralEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	e := &SpectralEngine{
		cfg:      cfg,
		hann:     window.Hann(cfg.WindowSize),
		ring:     make([]float64, cfg.WindowSize),
		windowed: make([]float64, cfg.WindowSize),
		mag:      make([]float64, cfg.WindowSize/2+1),
		prevMag:  make([]float64, cfg.WindowSize/2+1),
	}

	e.hopSeconds = float64(cfg.HopSize) / float64(cfg.SampleRate)
	e.minIOIFrames = int64(math.Ceil(cfg.MinIOIMs / 1000 / e.hopSeconds))
	e.lastOnset = -e.minIOIFrames - 1

	envLen := int(tempoHistorySec / e.hopSeconds)
	if envLen > maxEnvelopeLen {
		envLen = maxEnvelopeLen
	}
	e.minLag = int(math.Floor(60 / tempoMaxBPM / e.hopSeconds))
	if e.minLag < 1 {
		e.minLag = 1
	}
	e.maxLag = int(math.Ceil(60 / tempoMinBPM / e.hopSeconds))
	if envLen < 2*e.maxLag+2 {
		envLen = 2*e.maxLag + 2
	}
	e.envelope = make([]float64, envLen)
	e.envScratch = make([]float64, envLen)
	e.tempoEvery = int(math.Max(1, math.Round(tempoUpdateSec/e.hopSeconds)))

	if cfg.Pitch {
		e.yinSize = cfg.WindowSize
		if e.yinSize > pitchMaxWindow {
			e.yinSize = pitchMaxWindow
		}
		e.yinDiff = make([]float64, e.yinSize/2)
	}

	return e, nil
}

// Analyze implements Engine
func (e *SpectralEngine) Analyze(frame []float64, onsetThreshold float64) Result {
	e.frame++
	e.slide(frame)

	odf := e.detectionFunction()
	level := levelDB(frame)

	if onsetThreshold <= 0 {
		onsetThreshold = e.cfg.OnsetThreshold
	}
	isOnset := e.pickPeak(odf, onsetThreshold, level)

	e.pushEnvelope(odf)
	e.sinceTempo++
	if e.sinceTempo >= e.tempoEvery {
		e.sinceTempo = 0
		e.estimateTempo()
	}

	result := Result{
		BPM:        e.bpm,
		Confidence: e.confidence,
		IsOnset:    isOnset,
	}
	if e.cfg.Pitch {
		result.PitchHz = e.detectPitch()
	}
	return result
}

// Close implements Engine
func (e *SpectralEngine) Close() error {
	return nil
}

// slide advances the analysis window by the incoming frame
func (e *SpectralEngine) slide(frame []float64) {
	n := len(frame)
	if n >= len(e.ring) {
		copy(e.ring, frame[n-len(e.ring):])
		return
	}
	copy(e.ring, e.ring[n:])
	copy(e.ring[len(e.ring)-n:], frame)
}

// detectionFunction computes the configured onset detection function over
// the current window and remembers the magnitude spectrum for flux methods
func (e *SpectralEngine) detectionFunction() float64 {
	for i, x := range e.ring {
		e.windowed[i] = x * e.hann[i]
	}
	spectrum := fft.FFTReal(e.windowed)
	for k := range e.mag {
		e.mag[k] = cmplx.Abs(spectrum[k])
	}

	var odf float64
	switch e.cfg.Method {
	case MethodEnergy:
		for _, m := range e.mag {
			odf += m * m
		}
	case MethodSpecFlux, MethodComplex:
		for k, m := range e.mag {
			if d := m - e.prevMag[k]; d > 0 {
				odf += d
			}
		}
	default:
		for k, m := range e.mag {
			odf += float64(k+1) * m
		}
	}

	copy(e.prevMag, e.mag)
	return odf
}

// pickPeak applies adaptive peak picking: the ODF must exceed the median of
// its recent history plus threshold times the recent mean, be rising, clear
// the silence floor and respect the minimum inter-onset interval
func (e *SpectralEngine) pickPeak(odf, threshold, level float64) bool {
	onset := false
	if e.peakCount > 0 && odf > odfFloor && level >= e.cfg.SilenceDB && odf > e.prevODF {
		median, mean := e.peakStats()
		if odf > median+threshold*mean && e.frame-e.lastOnset > e.minIOIFrames {
			onset = true
			e.lastOnset = e.frame
		}
	}

	e.peakHist[e.peakPos] = odf
	e.peakPos = (e.peakPos + 1) % peakHistoryLen
	if e.peakCount < peakHistoryLen {
		e.peakCount++
	}
	e.prevODF = odf
	return onset
}

// peakStats returns median and mean of the peak-picking history without
// allocating
func (e *SpectralEngine) peakStats() (median, mean float64) {
	n := e.peakCount
	vals := e.peakScratch[:n]
	copy(vals, e.peakHist[:n])

	// Insertion sort; n is at most peakHistoryLen
	for i := 1; i < n; i++ {
		for j := i; j > 0 && vals[j] < vals[j-1]; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(n)
	if n%2 == 1 {
		median = vals[n/2]
	} else {
		median = (vals[n/2-1] + vals[n/2]) / 2
	}
	return median, mean
}

func (e *SpectralEngine) pushEnvelope(odf float64) {
	e.envelope[e.envPos] = odf
	e.envPos = (e.envPos + 1) % len(e.envelope)
	if e.envCount < len(e.envelope) {
		e.envCount++
	}
}

// estimateTempo finds the dominant beat period in the ODF envelope by
// autocorrelation over the 60-200 BPM lag range
func (e *SpectralEngine) estimateTempo() {
	n := e.envCount
	maxLag := e.maxLag
	if maxLag > n/2 {
		maxLag = n / 2
	}
	if maxLag <= e.minLag {
		return
	}

	// Unroll the ring oldest-first and remove the mean
	x := e.envScratch[:n]
	start := (e.envPos - n + len(e.envelope)) % len(e.envelope)
	var sum float64
	for i := range n {
		x[i] = e.envelope[(start+i)%len(e.envelope)]
		sum += x[i]
	}
	mean := sum / float64(n)
	var r0 float64
	for i := range x {
		x[i] -= mean
		r0 += x[i] * x[i]
	}
	if r0 <= 0 {
		e.confidence = 0
		return
	}
	r0 /= float64(n)

	acf := func(lag int) float64 {
		var s float64
		for i := 0; i+lag < n; i++ {
			s += x[i] * x[i+lag]
		}
		return s / float64(n-lag) / r0
	}

	// First pass finds the strongest local maximum, second pass prefers the
	// shortest lag close to it so tempo doubling errors favour the faster beat
	bestVal := 0.0
	prev, cur := acf(e.minLag-1), acf(e.minLag)
	for lag := e.minLag; lag < maxLag; lag++ {
		next := acf(lag + 1)
		if cur > prev && cur >= next && cur > bestVal {
			bestVal = cur
		}
		prev, cur = cur, next
	}
	if bestVal <= 0 {
		e.confidence = 0
		return
	}

	bestLag := 0
	var left, peak, right float64
	prev, cur = acf(e.minLag-1), acf(e.minLag)
	for lag := e.minLag; lag < maxLag; lag++ {
		next := acf(lag + 1)
		if cur > prev && cur >= next && cur >= tempoPeakRatio*bestVal {
			bestLag = lag
			left, peak, right = prev, cur, next
			break
		}
		prev, cur = cur, next
	}
	if bestLag == 0 {
		return
	}

	confidence := math.Min(1, math.Max(0, peak))
	e.confidence = confidence
	if confidence < e.cfg.TempoThreshold {
		return
	}

	period := float64(bestLag) + parabolicOffset(left, peak, right)
	e.bpm = 60 / (period * e.hopSeconds)
}

// detectPitch runs YIN over the most recent yinSize samples and returns the
// fundamental in Hz, or 0 when no periodicity clears the tolerance
func (e *SpectralEngine) detectPitch() float64 {
	buf := e.ring[len(e.ring)-e.yinSize:]
	half := e.yinSize / 2
	tauMax := half
	if limit := int(float64(e.cfg.SampleRate) / pitchMinHz); limit < tauMax {
		tauMax = limit
	}
	tauMin := int(float64(e.cfg.SampleRate) / pitchMaxHz)
	if tauMin < 2 {
		tauMin = 2
	}
	if tauMax <= tauMin+1 {
		return 0
	}

	d := e.yinDiff[:tauMax]
	d[0] = 1
	var running float64
	for tau := 1; tau < tauMax; tau++ {
		var s float64
		for j := range half {
			delta := buf[j] - buf[j+tau]
			s += delta * delta
		}
		running += s
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] = s * float64(tau) / running
	}

	for tau := tauMin; tau < tauMax-1; tau++ {
		if d[tau] < e.cfg.PitchTolerance && d[tau] <= d[tau+1] {
			period := float64(tau) + parabolicOffset(d[tau-1], d[tau], d[tau+1])
			hz := float64(e.cfg.SampleRate) / period
			if e.cfg.RejectHum && mains.IsHum(hz, e.cfg.MainsHz) {
				return 0
			}
			return hz
		}
	}
	return 0
}

// parabolicOffset returns the sub-sample offset of a peak (or trough) from
// three neighbouring values
func parabolicOffset(left, centre, right float64) float64 {
	denom := left - 2*centre + right
	if denom == 0 {
		return 0
	}
	offset := 0.5 * (left - right) / denom
	if math.Abs(offset) > 1 {
		return 0
	}
	return offset
}

// levelDB returns the frame level in dBFS (20*log10 of RMS)
func levelDB(frame []float64) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, x := range frame {
		sum += x * x
	}
	if sum == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(sum/float64(len(frame)))
}
