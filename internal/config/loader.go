package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path over Default and returns
// the validated result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default and validates the result.
// Unknown keys are rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Audio
	if _, err := cfg.SourceSpec(); err != nil {
		errs = append(errs, fmt.Errorf("audio.source: %w", err))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.ChunkMin <= 0 || cfg.Audio.ChunkMax < cfg.Audio.ChunkMin {
		errs = append(errs, fmt.Errorf("audio.chunk_min/chunk_max must satisfy 0 < min <= max, got %d/%d", cfg.Audio.ChunkMin, cfg.Audio.ChunkMax))
	}

	// Analysis
	a := cfg.Analysis
	if !a.Method.IsValid() {
		errs = append(errs, fmt.Errorf("analysis.method %q is invalid; valid values: hfc, energy, specflux, complex", a.Method))
	}
	if a.BufferSize < MinBufferSize || a.BufferSize > MaxBufferSize {
		errs = append(errs, fmt.Errorf("analysis.buffer_size must be between %d and %d, got %d", MinBufferSize, MaxBufferSize, a.BufferSize))
	}
	if a.FFTMultiplier < 1 {
		errs = append(errs, fmt.Errorf("analysis.fft_multiplier must be at least 1, got %d", a.FFTMultiplier))
	}
	errs = appendUnit(errs, "analysis.onset_threshold", a.OnsetThreshold)
	errs = appendUnit(errs, "analysis.tempo_threshold", a.TempoThreshold)
	if a.MinIOIMs < 0 {
		errs = append(errs, fmt.Errorf("analysis.min_ioi_ms must not be negative, got %v", a.MinIOIMs))
	}
	if a.Pitch {
		errs = appendUnit(errs, "analysis.pitch_tolerance", a.PitchTolerance)
	}
	if a.MainsHz != 0 && a.MainsHz != 50 && a.MainsHz != 60 {
		errs = append(errs, fmt.Errorf("analysis.mains_hz must be 0, 50 or 60, got %d", a.MainsHz))
	}

	// Detector
	d := cfg.Detector
	errs = appendUnit(errs, "detector.silence_floor", d.SilenceFloor)
	errs = appendUnit(errs, "detector.threshold_max", d.ThresholdMax)
	errs = appendUnit(errs, "detector.confidence_threshold", d.ConfidenceThreshold)
	if d.ThresholdBase < 0 || d.ThresholdSlope < 0 {
		errs = append(errs, errors.New("detector.threshold_base and threshold_slope must not be negative"))
	}
	if !(d.BPMMin < d.BPMMax) {
		errs = append(errs, fmt.Errorf("detector.bpm_min (%v) must be below bpm_max (%v)", d.BPMMin, d.BPMMax))
	}
	if d.Smoothing < 0 || d.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("detector.smoothing must be in [0, 1), got %v", d.Smoothing))
	}
	if d.VarianceLimit <= 0 {
		errs = append(errs, fmt.Errorf("detector.variance_limit must be positive, got %v", d.VarianceLimit))
	}
	if d.HistorySize <= 0 || d.StabilityWindow <= 0 {
		errs = append(errs, errors.New("detector.history_size and stability_window must be positive"))
	}
	if d.ReportEvery < 0 {
		errs = append(errs, fmt.Errorf("detector.report_every must not be negative, got %d", d.ReportEvery))
	}
	if d.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("detector.queue_size must be positive, got %d", d.QueueSize))
	}

	// Output
	if !cfg.Output.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("output.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Output.LogLevel))
	}

	return errors.Join(errs...)
}

// appendUnit checks that v lies in (0, 1]
func appendUnit(errs []error, key string, v float64) []error {
	if !(v > 0 && v <= 1) {
		return append(errs, fmt.Errorf("%s must be in (0, 1], got %v", key, v))
	}
	return errs
}
