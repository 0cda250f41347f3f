package ui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// Sender is the part of *tea.Program used by ProgramSink
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards pipeline events to a running Bubbletea program
type ProgramSink struct {
	p Sender
}

// NewProgramSink returns a sink sending to p
func NewProgramSink(p Sender) *ProgramSink {
	return &ProgramSink{p: p}
}

// Name implements the dispatcher's sink naming
func (s *ProgramSink) Name() string { return "tui" }

// HandleBeat implements processor.EventSink
func (s *ProgramSink) HandleBeat(ev processor.BeatEvent) error {
	s.p.Send(BeatMsg{Event: ev})
	return nil
}

// HandleReport implements processor.EventSink
func (s *ProgramSink) HandleReport(r processor.FrameReport) error {
	s.p.Send(ReportMsg{Report: r})
	return nil
}

// HandleState implements processor.StateSink
func (s *ProgramSink) HandleState(state audio.State, err error) error {
	s.p.Send(StateMsg{State: state, Err: err})
	return nil
}

// ConsoleSink prints one line per beat, for --no-visual runs
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink returns a sink writing to w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Name implements the dispatcher's sink naming
func (s *ConsoleSink) Name() string { return "console" }

// HandleBeat implements processor.EventSink
func (s *ConsoleSink) HandleBeat(ev processor.BeatEvent) error {
	_, err := io.WriteString(s.w, FormatBeat(ev)+"\n")
	return err
}

// HandleReport implements processor.EventSink
func (s *ConsoleSink) HandleReport(processor.FrameReport) error {
	return nil
}

// HandleState implements processor.StateSink
func (s *ConsoleSink) HandleState(state audio.State, err error) error {
	line := fmt.Sprintf(" %s Stream state: %s\n", stateIcon(state), state)
	if err != nil {
		line += fmt.Sprintf(" Stream error: %v\n", err)
	}
	_, werr := io.WriteString(s.w, line)
	return werr
}

// FormatBeat renders the console beat line:
//
//	🎵 BEAT! BPM: 120.0 | Conf: 0.85 | STABLE
func FormatBeat(ev processor.BeatEvent) string {
	line := fmt.Sprintf(" 🎵 BEAT! BPM: %.1f | Conf: %.2f", ev.BPM, ev.Confidence)
	if ev.Stable {
		line += " | STABLE"
	}
	return line
}

var (
	_ processor.EventSink = (*ProgramSink)(nil)
	_ processor.StateSink = (*ProgramSink)(nil)
	_ processor.EventSink = (*ConsoleSink)(nil)
	_ processor.StateSink = (*ConsoleSink)(nil)
)
