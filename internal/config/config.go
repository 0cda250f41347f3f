// Package config provides the run configuration schema and its YAML loader.
// Values come from Default, are overlaid by an optional YAML file and finally
// by command-line flags.
package config

import (
	"log/slog"

	"github.com/linuxmatters/beatdetector/internal/analysis"
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/processor"
)

// Buffer size limits accepted on the command line and in config files
const (
	MinBufferSize     = 64
	MaxBufferSize     = 8192
	DefaultBufferSize = 128
)

// LogLevel controls diagnostic log verbosity
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a slog level; unknown values map to Info
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the complete run configuration
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Detector DetectorConfig `yaml:"detector"`
	Output   OutputConfig   `yaml:"output"`
}

// AudioConfig selects and shapes the audio source
type AudioConfig struct {
	// Source is "click", "click:BPM", "click:BPM:DURATION", "file:PATH" or a
	// bare file path.
	Source     string `yaml:"source"`
	SampleRate int    `yaml:"sample_rate"`
	ChunkMin   int    `yaml:"chunk_min"`
	ChunkMax   int    `yaml:"chunk_max"`
	Realtime   bool   `yaml:"realtime"`
	Seed       uint64 `yaml:"seed"`
}

// AnalysisConfig configures the spectral analysis engine
type AnalysisConfig struct {
	Method         analysis.Method `yaml:"method"`
	BufferSize     int             `yaml:"buffer_size"`
	FFTMultiplier  int             `yaml:"fft_multiplier"`
	OnsetThreshold float64         `yaml:"onset_threshold"`
	TempoThreshold float64         `yaml:"tempo_threshold"`
	MinIOIMs       float64         `yaml:"min_ioi_ms"`
	SilenceDB      float64         `yaml:"silence_db"`
	Pitch          bool            `yaml:"pitch"`
	PitchTolerance float64         `yaml:"pitch_tolerance"`
	RejectHum      bool            `yaml:"reject_hum"`
	MainsHz        int             `yaml:"mains_hz"` // 0 detects from the time zone
}

// DetectorConfig tunes the beat decision pipeline
type DetectorConfig struct {
	SilenceFloor        float64 `yaml:"silence_floor"`
	ThresholdBase       float64 `yaml:"threshold_base"`
	ThresholdSlope      float64 `yaml:"threshold_slope"`
	ThresholdMax        float64 `yaml:"threshold_max"`
	BPMMin              float64 `yaml:"bpm_min"`
	BPMMax              float64 `yaml:"bpm_max"`
	Smoothing           float64 `yaml:"smoothing"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	VarianceLimit       float64 `yaml:"variance_limit"`
	HistorySize         int     `yaml:"history_size"`
	StabilityWindow     int     `yaml:"stability_window"`
	ReportEvery         int     `yaml:"report_every"`
	QueueSize           int     `yaml:"queue_size"`
}

// OutputConfig controls the sinks and diagnostics
type OutputConfig struct {
	Log         bool     `yaml:"log"`
	LogDir      string   `yaml:"log_dir"`
	Stats       bool     `yaml:"stats"`
	Visual      bool     `yaml:"visual"`
	MetricsAddr string   `yaml:"metrics_addr"` // Empty disables the metrics server
	LogLevel    LogLevel `yaml:"log_level"`
}

// Default returns the tuned defaults
func Default() *Config {
	gate := processor.DefaultSilenceGate()
	threshold := processor.DefaultAdaptiveThreshold()
	decision := processor.DefaultDecisionConfig()
	engine := analysis.DefaultConfig(DefaultBufferSize)
	chunking := audio.DefaultChunking()

	return &Config{
		Audio: AudioConfig{
			Source:     "click",
			SampleRate: chunking.SampleRate,
			ChunkMin:   chunking.Min,
			ChunkMax:   chunking.Max,
			Realtime:   chunking.Realtime,
			Seed:       chunking.Seed,
		},
		Analysis: AnalysisConfig{
			Method:         engine.Method,
			BufferSize:     DefaultBufferSize,
			FFTMultiplier:  engine.WindowSize / engine.HopSize,
			OnsetThreshold: engine.OnsetThreshold,
			TempoThreshold: engine.TempoThreshold,
			MinIOIMs:       engine.MinIOIMs,
			SilenceDB:      engine.SilenceDB,
			PitchTolerance: engine.PitchTolerance,
			RejectHum:      true,
		},
		Detector: DetectorConfig{
			SilenceFloor:        gate.Floor,
			ThresholdBase:       threshold.Base,
			ThresholdSlope:      threshold.Slope,
			ThresholdMax:        threshold.Max,
			BPMMin:              decision.BPMMin,
			BPMMax:              decision.BPMMax,
			Smoothing:           decision.Smoothing,
			ConfidenceThreshold: decision.ConfidenceThreshold,
			VarianceLimit:       decision.VarianceLimit,
			HistorySize:         decision.HistorySize,
			StabilityWindow:     decision.StabilityWindow,
			ReportEvery:         processor.DefaultReportEvery,
			QueueSize:           processor.DefaultQueueSize,
		},
		Output: OutputConfig{
			Log:      true,
			LogDir:   ".",
			Stats:    true,
			Visual:   true,
			LogLevel: LogInfo,
		},
	}
}

// Overrides carries command-line values that replace configured ones. Zero
// values leave the configuration untouched.
type Overrides struct {
	BufferSize  int
	NoLog       bool
	NoStats     bool
	Pitch       bool
	NoVisual    bool
	Source      string
	MetricsAddr string
	LogLevel    string
}

// ApplyOverrides overlays o onto cfg and revalidates it
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.BufferSize != 0 {
		c.Analysis.BufferSize = o.BufferSize
	}
	if o.NoLog {
		c.Output.Log = false
	}
	if o.NoStats {
		c.Output.Stats = false
	}
	if o.Pitch {
		c.Analysis.Pitch = true
	}
	if o.NoVisual {
		c.Output.Visual = false
	}
	if o.Source != "" {
		c.Audio.Source = o.Source
	}
	if o.MetricsAddr != "" {
		c.Output.MetricsAddr = o.MetricsAddr
	}
	if o.LogLevel != "" {
		c.Output.LogLevel = LogLevel(o.LogLevel)
	}
	return Validate(c)
}

// SourceSpec parses the configured audio source
func (c *Config) SourceSpec() (audio.SourceSpec, error) {
	return audio.ParseSourceSpec(c.Audio.Source)
}

// Chunking returns the source delivery parameters
func (c *Config) Chunking() audio.Chunking {
	return audio.Chunking{
		SampleRate: c.Audio.SampleRate,
		Min:        c.Audio.ChunkMin,
		Max:        c.Audio.ChunkMax,
		Realtime:   c.Audio.Realtime,
		Seed:       c.Audio.Seed,
	}
}

// EngineConfig returns the analysis engine configuration. mainsHz is used
// when the config leaves mains_hz at zero.
func (c *Config) EngineConfig(mainsHz int) analysis.Config {
	a := c.Analysis
	if a.MainsHz != 0 {
		mainsHz = a.MainsHz
	}
	return analysis.Config{
		Method:         a.Method,
		HopSize:        a.BufferSize,
		WindowSize:     a.BufferSize * a.FFTMultiplier,
		SampleRate:     c.Audio.SampleRate,
		OnsetThreshold: a.OnsetThreshold,
		TempoThreshold: a.TempoThreshold,
		MinIOIMs:       a.MinIOIMs,
		SilenceDB:      a.SilenceDB,
		Pitch:          a.Pitch,
		PitchTolerance: a.PitchTolerance,
		RejectHum:      a.RejectHum,
		MainsHz:        float64(mainsHz),
	}
}

// PipelineOptions returns the processor options. Engine and Handoff are left
// for the caller to set.
func (c *Config) PipelineOptions() processor.Options {
	d := c.Detector
	return processor.Options{
		FrameSize: c.Analysis.BufferSize,
		Gate:      processor.SilenceGate{Floor: d.SilenceFloor},
		Threshold: processor.AdaptiveThreshold{
			Base:  d.ThresholdBase,
			Slope: d.ThresholdSlope,
			Max:   d.ThresholdMax,
		},
		Decision: processor.DecisionConfig{
			BPMMin:              d.BPMMin,
			BPMMax:              d.BPMMax,
			Smoothing:           d.Smoothing,
			ConfidenceThreshold: d.ConfidenceThreshold,
			VarianceLimit:       d.VarianceLimit,
			HistorySize:         d.HistorySize,
			StabilityWindow:     d.StabilityWindow,
			Pitch:               c.Analysis.Pitch,
		},
		ReportEvery: d.ReportEvery,
	}
}
