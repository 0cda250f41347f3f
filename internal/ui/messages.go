package ui

import (
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// BeatMsg carries an accepted beat from the dispatcher
type BeatMsg struct {
	Event processor.BeatEvent
}

// ReportMsg carries periodic pipeline diagnostics
type ReportMsg struct {
	Report processor.FrameReport
}

// StateMsg indicates the audio source changed state
type StateMsg struct {
	State audio.State
	Err   error
}

// DoneMsg indicates the audio source has finished and the run is over
type DoneMsg struct {
	Err error
}

// tickMsg refreshes the elapsed time while streaming
type tickMsg struct{}
