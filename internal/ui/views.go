package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// meterCells is the width of the beat meter in cells; each cell is 20 BPM
const meterCells = 10

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	subtitleStyle = mutedStyle.Italic(true)

	meterOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	meterOffStyle = mutedStyle

	stableStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00AA00"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#A40000")).
			Padding(0, 1).
			Width(60)

	footerStyle = boxStyle.BorderForeground(lipgloss.Color("#888888"))
)

// MeterIntensity returns the number of lit meter cells for bpm: one per
// 20 BPM, capped at ten
func MeterIntensity(bpm float64) int {
	if math.IsNaN(bpm) || bpm <= 0 {
		return 0
	}
	return int(math.Min(bpm/20, meterCells))
}

// RenderBeatMeter renders the plain single-line beat meter:
//
//	🎵 ██████░░░░ BPM: 120.0 | Conf: 0.85 | Avg: 118.50
func RenderBeatMeter(bpm, confidence, avg float64) string {
	n := MeterIntensity(bpm)
	return fmt.Sprintf(" 🎵 %s%s BPM: %.1f | Conf: %.2f | Avg: %.2f",
		strings.Repeat("█", n), strings.Repeat("░", meterCells-n),
		bpm, confidence, avg)
}

// renderMeterView renders the live view
func renderMeterView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderBeatBox(m))
	b.WriteString("\n")
	if len(m.Recent) > 0 {
		b.WriteString(renderRecent(m))
		b.WriteString("\n")
	}
	b.WriteString(renderFooter(m))

	return b.String()
}

// renderHeader renders the title, source and stream state
func renderHeader(m Model) string {
	title := titleStyle.Render("Beat Detector 🎵")
	subtitle := subtitleStyle.Render(m.Source)

	state := fmt.Sprintf("%s Stream state: %s", stateIcon(m.State), m.State)
	if m.StateErr != nil {
		state += " " + errorStyle.Render(m.StateErr.Error())
	}
	return title + "\n" + subtitle + "\n" + state
}

func stateIcon(s audio.State) string {
	switch s {
	case audio.StateConnecting:
		return "⋯"
	case audio.StatePaused:
		return "⏸"
	case audio.StateStreaming:
		return "♪"
	case audio.StateError:
		return "⚠"
	default:
		return "✗"
	}
}

// renderBeatBox renders the meter bar and the latest beat details
func renderBeatBox(m Model) string {
	var content strings.Builder

	if !m.HaveBeat {
		content.WriteString(renderBar(0))
		content.WriteString("\n")
		content.WriteString(mutedStyle.Render("Listening for beats..."))
		return boxStyle.Render(content.String())
	}

	ev := m.Last
	content.WriteString(renderBar(MeterIntensity(ev.BPM)))
	content.WriteString(fmt.Sprintf(" BPM: %.1f\n", ev.BPM))
	content.WriteString(fmt.Sprintf("Conf: %.2f | Avg: %.2f | Variance: %s",
		ev.Confidence, ev.AverageBPM, formatVariance(ev.Variance)))
	if ev.Stable {
		content.WriteString(" " + stableStyle.Render("STABLE"))
	}
	if m.Pitch {
		content.WriteString(fmt.Sprintf("\nPitch: %s", formatPitch(ev.PitchHz)))
	}

	return boxStyle.Render(content.String())
}

// renderBar renders a styled meter with n lit cells
func renderBar(n int) string {
	n = min(max(n, 0), meterCells)
	return meterOnStyle.Render(strings.Repeat("█", n)) +
		meterOffStyle.Render(strings.Repeat("░", meterCells-n))
}

// renderRecent lists the latest beats, newest first
func renderRecent(m Model) string {
	var b strings.Builder
	for _, ev := range m.Recent {
		line := fmt.Sprintf(" %s  %6.1f BPM  conf %.2f  amp %.4f",
			ev.Time.Format("15:04:05.000"), ev.BPM, ev.Confidence, ev.Amplitude)
		b.WriteString(mutedStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFooter renders the counters and runtime
func renderFooter(m Model) string {
	c := m.Counters
	content := fmt.Sprintf("Frames: %d (skipped %d) | Onsets: %d\nBeats: %d",
		c.Frames, c.Skipped, c.Onsets, max(m.Beats, c.Beats))
	if m.Dropped > 0 {
		content += fmt.Sprintf(" | Dropped: %d", m.Dropped)
	}
	content += fmt.Sprintf("\n⏱  %s  %s", formatElapsed(m.Elapsed), mutedStyle.Render("Press q to stop"))
	return footerStyle.Render(content)
}

// renderSummary renders the view left on screen after the run
func renderSummary(m Model) string {
	var b strings.Builder

	if m.Err != nil {
		b.WriteString(errorStyle.Render("✗ Detection stopped: " + m.Err.Error()))
	} else {
		b.WriteString(stableStyle.Render("✨ Detection stopped"))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf(" %d beats in %s", max(m.Beats, m.Counters.Beats), formatElapsed(m.Elapsed)))
	if m.HaveBeat {
		b.WriteString(fmt.Sprintf(" | last BPM %.1f | avg %.2f", m.Last.BPM, m.Last.AverageBPM))
	}
	b.WriteString("\n")
	return b.String()
}

// formatVariance shows the no-data sentinel as a dash
func formatVariance(v float64) string {
	if v >= processor.UnknownVariance {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatPitch(hz float64) string {
	if hz <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f Hz", hz)
}

func formatElapsed(d time.Duration) string {
	return d.Truncate(100 * time.Millisecond).String()
}
