// Package logging writes the per-run beat log and formats the end-of-run
// statistics table.
package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linuxmatters/beatdetector/internal/mains"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// BeatLogSchema is the column header written on the second line of every log
const BeatLogSchema = "# Timestamp,BPM,Confidence,Pitch(Hz),Amplitude,Variance"

// BeatLog appends one CSV line per accepted beat to a file named after the
// run start time. Each line is flushed as it is written so the log survives
// an abrupt exit.
type BeatLog struct {
	path string
	file *os.File
	w    *bufio.Writer
	loc  *time.Location
}

// BeatLogName returns the log file name for a run started at t
func BeatLogName(t time.Time) string {
	return "beat_log_" + t.Format("20060102_150405") + ".txt"
}

// CreateBeatLog creates the log in dir (the working directory when empty) and
// writes its header. Times are rendered in start's location.
func CreateBeatLog(dir string, start time.Time) (*BeatLog, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, BeatLogName(start))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	l := &BeatLog{path: path, file: f, w: bufio.NewWriter(f), loc: start.Location()}
	fmt.Fprintf(l.w, "# Beat Detection Log - %s (%s)\n", start.Format("2006-01-02 15:04:05"), mains.Zone())
	fmt.Fprintln(l.w, BeatLogSchema)
	if err := l.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	return l, nil
}

// Path returns the log file path
func (l *BeatLog) Path() string {
	return l.path
}

// Name identifies the sink in diagnostics
func (l *BeatLog) Name() string {
	return "beat-log"
}

// HandleBeat writes one line for ev
func (l *BeatLog) HandleBeat(ev processor.BeatEvent) error {
	l.w.WriteString(FormatBeatLine(ev, l.loc))
	l.w.WriteByte('\n')
	return l.w.Flush()
}

// HandleReport implements processor.EventSink; reports are not logged to file
func (l *BeatLog) HandleReport(processor.FrameReport) error {
	return nil
}

// Close flushes and closes the file
func (l *BeatLog) Close() error {
	ferr := l.w.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return ferr
}

// FormatBeatLine renders a beat as
// HH:MM:SS.mmm,bpm,confidence,pitch,amplitude,variance
func FormatBeatLine(ev processor.BeatEvent, loc *time.Location) string {
	ts := ev.Time
	if loc != nil {
		ts = ts.In(loc)
	}
	return fmt.Sprintf("%s,%.1f,%.2f,%.2f,%.4f,%.4f",
		ts.Format("15:04:05.000"), ev.BPM, ev.Confidence, ev.PitchHz, ev.Amplitude, ev.Variance)
}
