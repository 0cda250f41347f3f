package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
)

// Click shape
const (
	clickLength    = 6 * time.Millisecond
	clickFrequency = 2000.0
	clickAmplitude = 0.8

	// A quiet tone under the clicks keeps the gaps above the silence gate,
	// so the tempo tracker sees a continuous signal
	bedFrequency = 220.0
	bedAmplitude = 0.05
)

// ClickStreamer is a beep.Streamer producing a metronome click track: a short
// decaying 2kHz burst on every beat over a quiet 220Hz bed. It never ends.
type ClickStreamer struct {
	rate   beep.SampleRate
	period float64 // samples per beat
	length int     // samples per click
	pos    int64
}

// NewClickStreamer returns a click track at bpm for the given sample rate
func NewClickStreamer(sampleRate int, bpm float64) *ClickStreamer {
	rate := beep.SampleRate(sampleRate)
	return &ClickStreamer{
		rate:   rate,
		period: 60 / bpm * float64(sampleRate),
		length: max(rate.N(clickLength), 1),
	}
}

// Stream implements beep.Streamer
func (c *ClickStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		v := c.sample(c.pos)
		samples[i] = [2]float64{v, v}
		c.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (c *ClickStreamer) Err() error {
	return nil
}

func (c *ClickStreamer) sample(pos int64) float64 {
	return c.click(pos) + c.bed(pos)
}

func (c *ClickStreamer) bed(pos int64) float64 {
	return bedAmplitude * math.Sin(2*math.Pi*bedFrequency*float64(pos)/float64(c.rate))
}

func (c *ClickStreamer) click(pos int64) float64 {
	beat := math.Floor(float64(pos) / c.period)
	offset := pos - int64(math.Ceil(beat*c.period))
	if offset < 0 {
		// pos sits in the fractional gap before the beat boundary
		return 0
	}
	if offset >= int64(c.length) {
		return 0
	}
	t := float64(offset)
	decay := math.Exp(-t / (float64(c.length) / 4))
	return clickAmplitude * decay * math.Sin(2*math.Pi*clickFrequency*t/float64(c.rate))
}

// ClickSource delivers a synthetic click track, for demos and end-to-end
// checks without an audio file
type ClickSource struct {
	BPM      float64
	Duration time.Duration // Zero runs until cancelled
	Chunking
}

// Run implements Source
func (s *ClickSource) Run(ctx context.Context, h Handler) error {
	h.StateChanged(StateConnecting, nil)

	var stream beep.Streamer = NewClickStreamer(s.SampleRate, s.BPM)
	if s.Duration > 0 {
		stream = beep.Take(beep.SampleRate(s.SampleRate).N(s.Duration), stream)
	}
	return deliver(ctx, stream, s.Chunking, h)
}

// Describe implements Source
func (s *ClickSource) Describe() string {
	if s.Duration > 0 {
		return fmt.Sprintf("click track %.0f BPM for %s", s.BPM, s.Duration)
	}
	return fmt.Sprintf("click track %.0f BPM", s.BPM)
}
