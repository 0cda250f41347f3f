// Package ui provides the visual beat feedback for beatdetector: a Bubbletea
// live meter and a plain console printer for --no-visual.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// recentBeats is how many beats the meter lists under the bar
const recentBeats = 8

// tickInterval refreshes the runtime display between beats
const tickInterval = 250 * time.Millisecond

// Model is the Bubbletea model for the live beat meter
type Model struct {
	Source string // Source description for the header
	Pitch  bool   // Show the pitch column

	// Stream state
	State    audio.State
	StateErr error

	// Latest beat and the most recent ones, newest first
	Last     processor.BeatEvent
	HaveBeat bool
	Recent   []processor.BeatEvent

	// Cumulative counts from the latest report
	Counters processor.Counters
	Dropped  int64
	Beats    int64 // Beats seen by the UI, current between reports

	// Global state
	StartTime time.Time
	Elapsed   time.Duration
	Done      bool
	Err       error

	// Terminal dimensions
	Width  int
	Height int

	cancel context.CancelFunc
}

// NewModel creates the meter model. cancel is called when the user quits so
// the audio source stops; it may be nil.
func NewModel(source string, pitch bool, cancel context.CancelFunc) Model {
	return Model{
		Source:    source,
		Pitch:     pitch,
		State:     audio.StateConnecting,
		Recent:    make([]processor.BeatEvent, 0, recentBeats),
		StartTime: time.Now(),
		cancel:    cancel,
	}
}

// Init starts the runtime ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.Done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.Elapsed = time.Since(m.StartTime)
		return m, tick()

	case BeatMsg:
		m = m.addBeat(msg.Event)

	case ReportMsg:
		m.Counters = msg.Report.Counters
		m.Dropped = msg.Report.Dropped
		m.Beats = max(m.Beats, msg.Report.Beats)

	case StateMsg:
		m.State = msg.State
		if msg.Err != nil {
			m.StateErr = msg.Err
		}

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		m.Elapsed = time.Since(m.StartTime)
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderSummary(m)
	}
	return renderMeterView(m)
}

// addBeat records ev as the latest beat and prepends it to the recent list
func (m Model) addBeat(ev processor.BeatEvent) Model {
	m.Last = ev
	m.HaveBeat = true
	m.Beats++

	if len(m.Recent) < recentBeats {
		m.Recent = append(m.Recent, processor.BeatEvent{})
	}
	// Shift into a fresh slice so earlier Model values keep their history
	recent := make([]processor.BeatEvent, len(m.Recent))
	recent[0] = ev
	copy(recent[1:], m.Recent[:len(m.Recent)-1])
	m.Recent = recent
	return m
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
