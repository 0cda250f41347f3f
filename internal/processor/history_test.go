package processor

import (
	"math"
	"slices"
	"testing"
)

func TestHistoryEviction(t *testing.T) {
	for _, capacity := range []int{1, 5, 20} {
		h := NewHistory(capacity)
		for i := range 3 * capacity {
			h.Push(float64(i))
			if h.Len() > capacity {
				t.Fatalf("cap %d: Len() = %d after %d pushes", capacity, h.Len(), i+1)
			}

			// Oldest value is evicted exactly once per push beyond capacity
			want := max(0, i+1-capacity)
			if h.At(0) != float64(want) {
				t.Fatalf("cap %d: oldest = %v after %d pushes, want %d", capacity, h.At(0), i+1, want)
			}
		}
		if h.Cap() != capacity {
			t.Errorf("Cap() = %d, want %d", h.Cap(), capacity)
		}
	}
}

func TestHistoryValues(t *testing.T) {
	h := NewHistory(3)
	for _, v := range []float64{1, 2, 3, 4} {
		h.Push(v)
	}
	if got := h.Values(); !slices.Equal(got, []float64{2, 3, 4}) {
		t.Errorf("Values() = %v, want [2 3 4]", got)
	}
	h.Reset()
	if h.Len() != 0 || len(h.Values()) != 0 {
		t.Errorf("Reset() left %d values", h.Len())
	}
}

func TestHistoryStats(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantMean   float64
		wantStdDev float64
	}{
		{"empty", nil, 0, 0},
		{"constant", []float64{100, 100, 100, 100, 100}, 100, 0},
		{"spread", []float64{95, 100, 105, 100, 100}, 100, math.Sqrt(10)},
		{"two values", []float64{110, 130}, 120, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(5)
			for _, v := range tt.values {
				h.Push(v)
			}
			if got := h.Mean(); math.Abs(got-tt.wantMean) > 1e-9 {
				t.Errorf("Mean() = %v, want %v", got, tt.wantMean)
			}
			if got := h.StdDev(); math.Abs(got-tt.wantStdDev) > 1e-9 {
				t.Errorf("StdDev() = %v, want %v", got, tt.wantStdDev)
			}
		})
	}
}
