// Package mock provides a scripted analysis.Engine for tests.
package mock

import (
	"sync"

	"github.com/linuxmatters/beatdetector/internal/analysis"
)

// Engine replays a fixed script of results. Once the script is exhausted the
// last entry repeats; an empty script yields zero results.
type Engine struct {
	mu         sync.Mutex
	script     []analysis.Result
	calls      int
	thresholds []float64
	frameSizes []int
	closed     int
}

// New returns an Engine that replays results in order
func New(results ...analysis.Result) *Engine {
	return &Engine{script: results}
}

// Repeat returns an Engine that always returns r
func Repeat(r analysis.Result) *Engine {
	return New(r)
}

// Analyze implements analysis.Engine. It records the threshold and frame
// length it was called with.
func (e *Engine) Analyze(frame []float64, onsetThreshold float64) analysis.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.thresholds = append(e.thresholds, onsetThreshold)
	e.frameSizes = append(e.frameSizes, len(frame))

	var r analysis.Result
	switch {
	case len(e.script) == 0:
	case e.calls < len(e.script):
		r = e.script[e.calls]
	default:
		r = e.script[len(e.script)-1]
	}
	e.calls++
	return r
}

// Close implements analysis.Engine
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed++
	e.mu.Unlock()
	return nil
}

// Calls returns how many frames were analysed
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Thresholds returns a copy of every onset threshold passed to Analyze
func (e *Engine) Thresholds() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.thresholds...)
}

// FrameSizes returns a copy of every frame length passed to Analyze
func (e *Engine) FrameSizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.frameSizes...)
}

// Closed returns how many times Close was called
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var _ analysis.Engine = (*Engine)(nil)
