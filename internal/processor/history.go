package processor

import "math"

// History is a fixed-capacity FIFO of float64 values. Pushing into a full
// History evicts exactly the oldest value. It never allocates after
// construction.
type History struct {
	buf   []float64
	start int
	n     int
}

// NewHistory returns an empty History holding at most capacity values.
// Capacity below one is raised to one.
func NewHistory(capacity int) *History {
	return &History{buf: make([]float64, max(capacity, 1))}
}

// Push appends v, evicting the oldest value when full
func (h *History) Push(v float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of values held
func (h *History) Len() int { return h.n }

// Cap returns the capacity
func (h *History) Cap() int { return len(h.buf) }

// At returns the i-th value, oldest first
func (h *History) At(i int) float64 {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Values returns a copy of the contents, oldest first
func (h *History) Values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Mean returns the arithmetic mean, or 0 when empty
func (h *History) Mean() float64 {
	if h.n == 0 {
		return 0
	}
	var sum float64
	for i := range h.n {
		sum += h.At(i)
	}
	return sum / float64(h.n)
}

// StdDev returns the population standard deviation, or 0 when empty
func (h *History) StdDev() float64 {
	if h.n == 0 {
		return 0
	}
	mean := h.Mean()
	var sum float64
	for i := range h.n {
		d := h.At(i) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(h.n))
}

// Reset empties the history
func (h *History) Reset() {
	h.start, h.n = 0, 0
}
