package processor

import (
	"errors"
	"fmt"
)

// ErrInvalidFrameSize is returned when a frame size is not positive
var ErrInvalidFrameSize = errors.New("frame size must be positive")

// FrameAccumulator reassembles variable-length sample chunks into fixed-size
// analysis frames. Its buffer is allocated once; Fill and Push never allocate.
type FrameAccumulator struct {
	frame  []float64
	offset int
}

// NewFrameAccumulator returns an accumulator producing frames of frameSize
// samples
func NewFrameAccumulator(frameSize int) (*FrameAccumulator, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, frameSize)
	}
	return &FrameAccumulator{frame: make([]float64, frameSize)}, nil
}

// Size returns the frame size
func (a *FrameAccumulator) Size() int {
	return len(a.frame)
}

// Pending returns the number of samples held in the partially filled frame
func (a *FrameAccumulator) Pending() int {
	return a.offset
}

// Fill copies as much of chunk as fits into the current frame. It returns the
// number of samples consumed and whether the frame is now full. A full frame
// must be taken with Frame and released with Reset before filling resumes.
func (a *FrameAccumulator) Fill(chunk []float32) (consumed int, full bool) {
	space := a.frame[a.offset:]
	n := min(len(space), len(chunk))
	for i, s := range chunk[:n] {
		space[i] = float64(s)
	}
	a.offset += n
	return n, a.offset == len(a.frame)
}

// Frame returns the frame buffer. The slice is reused: it is only valid until
// the next Fill after Reset.
func (a *FrameAccumulator) Frame() []float64 {
	return a.frame
}

// Reset rewinds the write offset after a full frame has been consumed
func (a *FrameAccumulator) Reset() {
	a.offset = 0
}

// Discard drops a partially accumulated frame
func (a *FrameAccumulator) Discard() {
	clear(a.frame[:a.offset])
	a.offset = 0
}

// Push feeds chunk through the accumulator, calling fn for every frame that
// fills, and returns the number of frames produced. Any remainder is kept for
// the next call.
func (a *FrameAccumulator) Push(chunk []float32, fn func(frame []float64)) int {
	frames := 0
	for len(chunk) > 0 {
		n, full := a.Fill(chunk)
		chunk = chunk[n:]
		if !full {
			break
		}
		fn(a.frame)
		a.Reset()
		frames++
	}
	return frames
}
