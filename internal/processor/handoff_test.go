package processor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linuxmatters/beatdetector/internal/audio"
)

// recordingSink collects everything it is handed
type recordingSink struct {
	mu      sync.Mutex
	beats   []BeatEvent
	reports []FrameReport
	states  []audio.State
	err     error
}

func (s *recordingSink) HandleBeat(ev BeatEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats = append(s.beats, ev)
	return s.err
}

func (s *recordingSink) HandleReport(r FrameReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) HandleState(state audio.State, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return s.err
}

// beatOnlySink does not implement StateSink
type beatOnlySink struct{ beats int }

func (s *beatOnlySink) HandleBeat(BeatEvent) error     { s.beats++; return nil }
func (s *beatOnlySink) HandleReport(FrameReport) error { return nil }

func TestHandoffOfferNeverBlocks(t *testing.T) {
	h := NewHandoff(4)
	accepted := 0
	for range 10 {
		if h.Offer(Event{Kind: EventBeat}) {
			accepted++
		}
	}
	if accepted != 4 || h.Dropped() != 6 || h.Len() != 4 {
		t.Errorf("accepted %d, dropped %d, queued %d; want 4, 6, 4", accepted, h.Dropped(), h.Len())
	}
}

func TestHandoffClose(t *testing.T) {
	h := NewHandoff(4)
	h.Offer(Event{Kind: EventBeat})
	h.Close()
	h.Close()

	if h.Offer(Event{Kind: EventBeat}) {
		t.Error("Offer() succeeded after Close")
	}
	n := 0
	for range h.Events() {
		n++
	}
	if n != 1 {
		t.Errorf("drained %d events after Close, want 1", n)
	}
}

func TestNewHandoffDefaultSize(t *testing.T) {
	h := NewHandoff(0)
	if cap(h.ch) != DefaultQueueSize {
		t.Errorf("NewHandoff(0) capacity = %d, want %d", cap(h.ch), DefaultQueueSize)
	}
}

func TestDispatcherFanOut(t *testing.T) {
	h := NewHandoff(16)
	a, b := &recordingSink{}, &beatOnlySink{}
	d := NewDispatcher(h, slog.New(slog.DiscardHandler), a, b)

	h.Offer(Event{Kind: EventState, State: audio.StateStreaming})
	h.Offer(Event{Kind: EventBeat, Beat: BeatEvent{BPM: 120}})
	h.Offer(Event{Kind: EventReport, Report: FrameReport{Counters: Counters{Frames: 200}}})
	h.Offer(Event{Kind: EventBeat, Beat: BeatEvent{BPM: 121}})
	h.Offer(Event{Kind: EventState, State: audio.StateDisconnected})
	h.Close()

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Close")
	}

	if len(a.beats) != 2 || a.beats[0].BPM != 120 || a.beats[1].BPM != 121 {
		t.Errorf("beats = %+v, want BPM 120 then 121", a.beats)
	}
	if len(a.reports) != 1 || a.reports[0].Frames != 200 {
		t.Errorf("reports = %+v, want one report at 200 frames", a.reports)
	}
	if len(a.states) != 2 || a.states[0] != audio.StateStreaming || a.states[1] != audio.StateDisconnected {
		t.Errorf("states = %v, want [streaming disconnected]", a.states)
	}
	if b.beats != 2 {
		t.Errorf("second sink saw %d beats, want 2", b.beats)
	}
}

func TestDispatcherLogsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := NewHandoff(4)
	failing := &recordingSink{err: errors.New("disk full")}
	healthy := &beatOnlySink{}
	d := NewDispatcher(h, logger, failing, healthy)

	h.Offer(Event{Kind: EventBeat})
	h.Close()
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("log output %q does not mention the sink error", buf.String())
	}
	if healthy.beats != 1 {
		t.Errorf("healthy sink saw %d beats after a failing sink, want 1", healthy.beats)
	}
}
