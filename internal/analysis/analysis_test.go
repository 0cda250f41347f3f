package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/linuxmatters/beatdetector/internal/audio"
)

// clickTrack builds a mono click track: a 256-sample decaying 2kHz burst on
// every beat, silence in between
func clickTrack(sampleRate int, bpm, seconds float64) []float64 {
	samples := make([]float64, int(seconds*float64(sampleRate)))
	period := 60 / bpm * float64(sampleRate)
	for beat := 0.0; int(beat) < len(samples); beat += period {
		start := int(beat)
		for i := 0; i < 256 && start+i < len(samples); i++ {
			decay := math.Exp(-float64(i) / 64)
			samples[start+i] = 0.8 * decay * math.Sin(2*math.Pi*2000*float64(i)/float64(sampleRate))
		}
	}
	return samples
}

func sine(sampleRate int, hz, amplitude, seconds float64) []float64 {
	samples := make([]float64, int(seconds*float64(sampleRate)))
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
	}
	return samples
}

// feed runs signal through e in hop-sized frames and returns every result
func feed(t *testing.T, e Engine, signal []float64, hop int) []Result {
	t.Helper()
	var results []Result
	for start := 0; start+hop <= len(signal); start += hop {
		results = append(results, e.Analyze(signal[start:start+hop], 0))
	}
	return results
}

func TestMethodIsValid(t *testing.T) {
	tests := []struct {
		method Method
		want   bool
	}{
		{MethodHFC, true},
		{MethodEnergy, true},
		{MethodSpecFlux, true},
		{MethodComplex, true},
		{"phase", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.method.IsValid(); got != tt.want {
			t.Errorf("Method(%q).IsValid() = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestMethodDescription(t *testing.T) {
	if got := MethodHFC.Description(); got != "HFC (High Frequency Content)" {
		t.Errorf("MethodHFC.Description() = %q", got)
	}
	if MethodComplex.Description() != MethodSpecFlux.Description() {
		t.Error("complex should describe itself as spectral flux")
	}
	if got := Method("custom").Description(); got != "custom" {
		t.Errorf("Method(custom).Description() = %q, want %q", got, "custom")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(128)
	if cfg.HopSize != 128 || cfg.WindowSize != 1024 {
		t.Errorf("DefaultConfig(128) hop/window = %d/%d, want 128/1024", cfg.HopSize, cfg.WindowSize)
	}
	if cfg.Method != MethodHFC {
		t.Errorf("DefaultConfig(128).Method = %q, want %q", cfg.Method, MethodHFC)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig(128).Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   []error
	}{
		{"unknown method", func(c *Config) { c.Method = "wavelet" }, []error{ErrUnknownMethod}},
		{"zero hop", func(c *Config) { c.HopSize = 0 }, []error{ErrInvalidHopSize}},
		{"window below hop", func(c *Config) { c.WindowSize = 64 }, []error{ErrInvalidWindowSize}},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, []error{ErrInvalidSampleRate}},
		{
			"several problems",
			func(c *Config) { c.Method = "x"; c.SampleRate = -1 },
			[]error{ErrUnknownMethod, ErrInvalidSampleRate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(128)
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("Validate() = %v, want it to wrap %v", err, want)
				}
			}
		})
	}
}

func TestNewSpectralEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig(128)
	cfg.HopSize = -1
	if _, err := NewSpectralEngine(cfg); !errors.Is(err, ErrInvalidHopSize) {
		t.Errorf("NewSpectralEngine() error = %v, want %v", err, ErrInvalidHopSize)
	}
}

func TestSpectralEngineSilence(t *testing.T) {
	cfg := DefaultConfig(512)
	cfg.Pitch = true
	e, err := NewSpectralEngine(cfg)
	if err != nil {
		t.Fatalf("NewSpectralEngine() error = %v", err)
	}
	defer e.Close()

	for i, r := range feed(t, e, make([]float64, 44100*3), 512) {
		if r.IsOnset || r.BPM != 0 || r.Confidence != 0 || r.PitchHz != 0 {
			t.Fatalf("frame %d: Analyze(silence) = %+v, want zero result", i, r)
		}
	}
}

func TestSpectralEngineClickOnsets(t *testing.T) {
	const bpm = 120.0
	signal := clickTrack(44100, bpm, 4)
	clicks := int(math.Ceil(4 * bpm / 60))

	for _, method := range []Method{MethodHFC, MethodEnergy, MethodSpecFlux} {
		t.Run(string(method), func(t *testing.T) {
			cfg := DefaultConfig(512)
			cfg.Method = method
			e, err := NewSpectralEngine(cfg)
			if err != nil {
				t.Fatalf("NewSpectralEngine() error = %v", err)
			}

			onsets := 0
			for _, r := range feed(t, e, signal, 512) {
				if r.IsOnset {
					onsets++
				}
			}
			if onsets < clicks-1 || onsets > clicks {
				t.Errorf("%s onsets = %d, want %d (or one fewer)", method, onsets, clicks)
			}
		})
	}
}

func TestSpectralEngineTempo(t *testing.T) {
	tests := []struct {
		bpm float64
	}{
		{90},
		{120},
		{150},
	}

	for _, tt := range tests {
		cfg := DefaultConfig(512)
		e, err := NewSpectralEngine(cfg)
		if err != nil {
			t.Fatalf("NewSpectralEngine() error = %v", err)
		}

		results := feed(t, e, clickTrack(44100, tt.bpm, 8), 512)
		last := results[len(results)-1]
		if math.Abs(last.BPM-tt.bpm) > 4 {
			t.Errorf("click track at %v BPM: BPM = %.2f", tt.bpm, last.BPM)
		}
		if last.Confidence <= cfg.TempoThreshold || last.Confidence > 1 {
			t.Errorf("click track at %v BPM: confidence = %.2f, want (%.2f, 1]", tt.bpm, last.Confidence, cfg.TempoThreshold)
		}
	}
}

// streamedClicks renders the left channel of the click source's streamer
func streamedClicks(sampleRate int, bpm, seconds float64) []float64 {
	buf := make([][2]float64, int(seconds*float64(sampleRate)))
	audio.NewClickStreamer(sampleRate, bpm).Stream(buf)
	out := make([]float64, len(buf))
	for i, s := range buf {
		out[i] = s[0]
	}
	return out
}

func TestSpectralEngineTracksClickSource(t *testing.T) {
	for _, bpm := range []float64{90, 120, 128, 150} {
		cfg := DefaultConfig(128)
		e, err := NewSpectralEngine(cfg)
		if err != nil {
			t.Fatalf("NewSpectralEngine() error = %v", err)
		}

		results := feed(t, e, streamedClicks(44100, bpm, 10), 128)
		onsets := 0
		for _, r := range results {
			if r.IsOnset {
				onsets++
			}
		}
		clicks := int(bpm / 6) // clicks in 10 seconds
		if onsets < clicks-2 || onsets > clicks+2 {
			t.Errorf("click source at %v BPM: %d onsets, want about %d", bpm, onsets, clicks)
		}

		last := results[len(results)-1]
		if math.Abs(last.BPM-bpm) > 3 {
			t.Errorf("click source at %v BPM: BPM = %.2f", bpm, last.BPM)
		}
		// The decision stage accepts beats above 0.5
		if last.Confidence <= 0.5 {
			t.Errorf("click source at %v BPM: confidence = %.2f, want above 0.5", bpm, last.Confidence)
		}
	}
}

func TestSpectralEnginePitch(t *testing.T) {
	tests := []struct {
		name      string
		hz        float64
		rejectHum bool
		wantHz    float64 // 0 = unvoiced
	}{
		{"A3", 220, false, 220},
		{"A4", 440, false, 440},
		{"hum kept", 50, false, 50},
		{"hum rejected", 50, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(1024)
			cfg.Pitch = true
			cfg.RejectHum = tt.rejectHum
			cfg.MainsHz = 50
			e, err := NewSpectralEngine(cfg)
			if err != nil {
				t.Fatalf("NewSpectralEngine() error = %v", err)
			}

			results := feed(t, e, sine(44100, tt.hz, 0.5, 1), 1024)
			got := results[len(results)-1].PitchHz
			if tt.wantHz == 0 {
				if got != 0 {
					t.Errorf("pitch = %.2f Hz, want 0", got)
				}
				return
			}
			if math.Abs(got-tt.wantHz) > 2 {
				t.Errorf("pitch = %.2f Hz, want %.0f Hz", got, tt.wantHz)
			}
		})
	}
}

func TestSpectralEnginePitchDisabled(t *testing.T) {
	e, err := NewSpectralEngine(DefaultConfig(1024))
	if err != nil {
		t.Fatalf("NewSpectralEngine() error = %v", err)
	}
	for _, r := range feed(t, e, sine(44100, 220, 0.5, 0.5), 1024) {
		if r.PitchHz != 0 {
			t.Fatalf("PitchHz = %v with pitch disabled, want 0", r.PitchHz)
		}
	}
}

func TestParabolicOffset(t *testing.T) {
	tests := []struct {
		left, centre, right float64
		want                float64
	}{
		{1, 2, 1, 0},
		{1, 1, 1, 0},
		{0, 1, 0.5, 0.166666},
	}
	for _, tt := range tests {
		got := parabolicOffset(tt.left, tt.centre, tt.right)
		if math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("parabolicOffset(%v, %v, %v) = %v, want %v", tt.left, tt.centre, tt.right, got, tt.want)
		}
	}
}

func TestLevelDB(t *testing.T) {
	if got := levelDB(nil); !math.IsInf(got, -1) {
		t.Errorf("levelDB(nil) = %v, want -Inf", got)
	}
	if got := levelDB(make([]float64, 64)); !math.IsInf(got, -1) {
		t.Errorf("levelDB(zeros) = %v, want -Inf", got)
	}
	full := []float64{1, -1, 1, -1}
	if got := levelDB(full); math.Abs(got) > 1e-9 {
		t.Errorf("levelDB(full scale square) = %v, want 0", got)
	}
}
