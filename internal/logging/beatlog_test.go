package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/beatdetector/internal/processor"
)

func TestBeatLogName(t *testing.T) {
	start := time.Date(2025, 7, 4, 9, 5, 3, 0, time.UTC)
	if got, want := BeatLogName(start), "beat_log_20250704_090503.txt"; got != want {
		t.Errorf("BeatLogName() = %q, want %q", got, want)
	}
}

func TestFormatBeatLine(t *testing.T) {
	at := time.Date(2025, 7, 4, 21, 30, 15, 42*int(time.Millisecond), time.UTC)

	tests := []struct {
		name string
		ev   processor.BeatEvent
		want string
	}{
		{
			name: "typical beat",
			ev:   processor.BeatEvent{Time: at, BPM: 123.456, Confidence: 0.8123, Amplitude: 0.51234, Variance: 1.23456},
			want: "21:30:15.042,123.5,0.81,0.00,0.5123,1.2346",
		},
		{
			name: "with pitch",
			ev:   processor.BeatEvent{Time: at, BPM: 90, Confidence: 1, PitchHz: 440.123, Amplitude: 1, Variance: 0},
			want: "21:30:15.042,90.0,1.00,440.12,1.0000,0.0000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBeatLine(tt.ev, time.UTC); got != tt.want {
				t.Errorf("FormatBeatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBeatLogWritesHeaderAndBeats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	log, err := CreateBeatLog(dir, start)
	if err != nil {
		t.Fatalf("CreateBeatLog() error = %v", err)
	}
	if filepath.Base(log.Path()) != "beat_log_20250102_030405.txt" {
		t.Errorf("Path() = %q", log.Path())
	}

	for i := range 3 {
		ev := processor.BeatEvent{
			Time:       start.Add(time.Duration(i) * 500 * time.Millisecond),
			BPM:        120,
			Confidence: 0.75,
			Amplitude:  0.5,
			Variance:   processor.UnknownVariance,
		}
		if err := log.HandleBeat(ev); err != nil {
			t.Fatalf("HandleBeat() error = %v", err)
		}
	}
	if err := log.HandleReport(processor.FrameReport{}); err != nil {
		t.Errorf("HandleReport() error = %v", err)
	}

	// Lines are flushed as they are written
	data, err := os.ReadFile(log.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("log has %d lines, want 5:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "# Beat Detection Log - 2025-01-02 03:04:05 (") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != BeatLogSchema {
		t.Errorf("schema = %q, want %q", lines[1], BeatLogSchema)
	}
	wantBeats := []string{
		"03:04:05.000,120.0,0.75,0.00,0.5000,999.0000",
		"03:04:05.500,120.0,0.75,0.00,0.5000,999.0000",
		"03:04:06.000,120.0,0.75,0.00,0.5000,999.0000",
	}
	for i, want := range wantBeats {
		if lines[i+2] != want {
			t.Errorf("line %d = %q, want %q", i+2, lines[i+2], want)
		}
	}
}

func TestCreateBeatLogFailure(t *testing.T) {
	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateBeatLog(blocker, time.Now()); err == nil {
		t.Error("CreateBeatLog() into a file path succeeded, want error")
	}
}
