package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/beatdetector/internal/analysis"
	"github.com/linuxmatters/beatdetector/internal/logging"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#A40000") // Beat red
	successColor = lipgloss.Color("#00AA00") // Green
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
	accentColor  = lipgloss.Color("#FFA500") // Orange
	infoColor    = lipgloss.Color("#00AAAA") // Cyan
)

// Styles
var (
	// Title style - bold red with note emoji
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// Section heading style
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	enabledStyle  = lipgloss.NewStyle().Foreground(successColor)
	disabledStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Beat Detector 🎵"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// Banner describes the run for the startup banner
type Banner struct {
	Source      string
	BufferSize  int
	FFTSize     int
	SampleRate  int
	Method      analysis.Method
	MainsHz     int
	LogPath     string // Empty when beat logging is off
	Stats       bool
	Pitch       bool
	MetricsAddr string // Empty when the metrics server is off
}

// PrintStartup writes the startup banner to w
func PrintStartup(w io.Writer, b Banner) {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("Beat Detector Started! 🎵"))
	sb.WriteString("\n")
	keyValue(&sb, "Source", b.Source)
	keyValue(&sb, "Buffer size", fmt.Sprintf("%d samples", b.BufferSize))
	keyValue(&sb, "FFT size", fmt.Sprintf("%d samples", b.FFTSize))
	keyValue(&sb, "Sample rate", fmt.Sprintf("%d Hz", b.SampleRate))
	keyValue(&sb, "Detection method", b.Method.Description())
	if b.MetricsAddr != "" {
		keyValue(&sb, "Metrics", "http://"+b.MetricsAddr+"/metrics")
	}

	sb.WriteString(SectionStyle.Render("   Features enabled:"))
	sb.WriteString("\n")
	feature(&sb, "Logging", b.LogPath != "")
	feature(&sb, "Performance stats", b.Stats)
	if b.Pitch {
		feature(&sb, fmt.Sprintf("Pitch detection (%d Hz hum rejected)", b.MainsHz), true)
	} else {
		feature(&sb, "Pitch detection", false)
	}
	feature(&sb, "Confidence gating", true)
	feature(&sb, "BPM stability tracking", true)

	if b.LogPath != "" {
		sb.WriteString("\n")
		keyValue(&sb, "Logging to", b.LogPath)
	}
	sb.WriteString("\n Listening for beats... Press Ctrl+C to stop.\n\n")

	fmt.Fprint(w, sb.String())
}

// PrintStatistics writes the final statistics table to w
func PrintStatistics(w io.Writer, s processor.RunStatistics) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Final Statistics:"))
	fmt.Fprintln(w, logging.StatsTable(s).String())
}

func keyValue(sb *strings.Builder, key, value string) {
	sb.WriteString("   ")
	sb.WriteString(KeyStyle.Render(key + ":"))
	sb.WriteString(" ")
	sb.WriteString(ValueStyle.Render(value))
	sb.WriteString("\n")
}

func feature(sb *strings.Builder, name string, enabled bool) {
	mark := disabledStyle.Render("✗")
	if enabled {
		mark = enabledStyle.Render("✓")
	}
	sb.WriteString("    ")
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(mark)
	sb.WriteString("\n")
}
