package logging

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linuxmatters/beatdetector/internal/processor"
)

// MetricRow represents a single row in a metric table.
// Values are pre-formatted strings so rows can mix precisions.
type MetricRow struct {
	Label          string   // Row label, e.g., "Total beats"
	Values         []string // One value per column
	Unit           string   // Unit suffix, e.g., "ms", "" for unitless
	Interpretation string   // Optional interpretation text (only shown if non-empty)
}

// MetricTable formats aligned columns of metrics.
// Handles variable column widths, missing values, and an optional interpretation column.
type MetricTable struct {
	Headers []string    // Column headers, e.g., ["Value"]
	Rows    []MetricRow // Data rows
}

// String renders the table with aligned columns.
// - Labels are left-aligned
// - Values are right-aligned within their column
// - Units follow the last value column
// - The interpretation column is only shown if any row has one
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasInterpretation := false
	labelWidth, unitWidth := 0, 0
	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
		unitWidth = max(unitWidth, len(row.Unit))
		if row.Interpretation != "" {
			hasInterpretation = true
		}
		for i, val := range row.Values {
			if i < len(valueWidths) {
				valueWidths[i] = max(valueWidths[i], len(val))
			}
		}
	}

	var sb strings.Builder

	// Header row
	var header strings.Builder
	header.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, h := range t.Headers {
		fmt.Fprintf(&header, "%*s  ", valueWidths[i], h)
	}
	if hasInterpretation {
		if unitWidth > 0 {
			header.WriteString(strings.Repeat(" ", unitWidth+1))
		}
		header.WriteString("Interpretation")
	}
	sb.WriteString(strings.TrimRight(header.String(), " "))
	sb.WriteString("\n")

	for _, row := range t.Rows {
		var line strings.Builder
		fmt.Fprintf(&line, "%-*s  ", labelWidth, row.Label)
		for i := range t.Headers {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			fmt.Fprintf(&line, "%*s  ", valueWidths[i], val)
		}
		if unitWidth > 0 {
			fmt.Fprintf(&line, "%-*s ", unitWidth, row.Unit)
		}
		if hasInterpretation {
			line.WriteString(row.Interpretation)
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// formatMetric formats a numeric value with the given precision.
// NaN and Inf render as MissingValue.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatCount formats an integer counter
func formatCount(n int64) string {
	return fmt.Sprintf("%d", n)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// NewMetricTable creates a single-column MetricTable
func NewMetricTable() *MetricTable {
	return &MetricTable{Headers: []string{"Value"}}
}

// AddRow adds a row with pre-formatted values
func (t *MetricTable) AddRow(label string, values []string, unit string, interpretation string) {
	t.Rows = append(t.Rows, MetricRow{
		Label:          label,
		Values:         values,
		Unit:           unit,
		Interpretation: interpretation,
	})
}

// AddMetricRow adds a single numeric value, formatted to decimals.
// Pass math.NaN() for missing values - they will display as "-".
func (t *MetricTable) AddMetricRow(label string, value float64, decimals int, unit string, interpretation string) {
	t.AddRow(label, []string{formatMetric(value, decimals)}, unit, interpretation)
}

// StatsTable builds the final statistics table for a run. Timing rows are
// omitted when no processing durations were recorded.
func StatsTable(s processor.RunStatistics) *MetricTable {
	t := NewMetricTable()
	t.AddRow("Total runtime", []string{FormatDuration(s.Runtime)}, "", "")
	t.AddRow("Total beats detected", []string{formatCount(s.Beats)}, "", "")
	t.AddRow("Total frames processed", []string{formatCount(s.Frames)}, "", "")
	t.AddRow("Silent frames skipped", []string{formatCount(s.Skipped)}, "", "")
	t.AddRow("Onsets detected", []string{formatCount(s.Onsets)}, "", fmt.Sprintf("of %d analysed", s.Analyzed))
	if s.Runtime > 0 {
		t.AddMetricRow("Detection rate", s.BeatsPerSecond, 2, "beats/sec", "")
	}
	if s.Samples > 0 {
		t.AddMetricRow("Average processing time", s.AverageMs, 3, "ms", interpretLatency(s.AverageMs))
		t.AddMetricRow("Max processing time", s.MaxMs, 3, "ms", "")
		t.AddMetricRow("Min processing time", s.MinMs, 3, "ms", "")
	}
	if s.AverageBPM > 0 {
		t.AddMetricRow("Final average BPM", s.AverageBPM, 1, "", "")
	}
	if s.DroppedEvents > 0 {
		t.AddRow("Dropped events", []string{formatCount(s.DroppedEvents)}, "", "sinks could not keep up")
	}
	return t
}

// interpretLatency describes per-frame processing time against the budget of
// a small capture buffer (128 samples at 44.1kHz is 2.9ms)
func interpretLatency(ms float64) string {
	switch {
	case ms < 0.5:
		return "comfortable real-time headroom"
	case ms < 2.9:
		return "within a 128-sample buffer"
	default:
		return "too slow for small buffers"
	}
}
