package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/beatdetector/internal/analysis"
	"github.com/linuxmatters/beatdetector/internal/audio"
	"github.com/linuxmatters/beatdetector/internal/cli"
	"github.com/linuxmatters/beatdetector/internal/config"
	"github.com/linuxmatters/beatdetector/internal/logging"
	"github.com/linuxmatters/beatdetector/internal/mains"
	"github.com/linuxmatters/beatdetector/internal/observe"
	"github.com/linuxmatters/beatdetector/internal/processor"
	"github.com/linuxmatters/beatdetector/internal/ui"
)

var (
	version = "0.1.0"
)

// debugLogName receives diagnostics while the live meter owns the terminal
const debugLogName = "beatdetector-debug.log"

// CLI defines the command-line interface
type CLI struct {
	BufferSize  int    `arg:"" optional:"" name:"buffer-size" help:"Samples per analysis frame, 64 to 8192 (default 128)"`
	Source      string `group:"input" help:"Audio source: click, click:BPM[:DURATION], file:PATH or a file path" placeholder:"SPEC"`
	Config      string `group:"input" short:"c" type:"path" help:"Path to YAML config file (optional)" placeholder:"FILE"`
	Pitch       bool   `group:"analysis" help:"Enable pitch detection"`
	NoLog       bool   `group:"output" help:"Disable logging to file"`
	NoStats     bool   `group:"output" help:"Disable performance statistics"`
	NoVisual    bool   `group:"output" help:"Disable visual feedback"`
	MetricsAddr string `group:"diagnostics" help:"Serve /metrics, /healthz and /readyz on this address" placeholder:"ADDR"`
	LogLevel    string `group:"diagnostics" help:"Diagnostic log level: debug, info, warn or error" placeholder:"LEVEL"`
	Version     bool   `short:"v" help:"Show version information"`
}

// Validate implements kong's validation hook
func (c *CLI) Validate() error {
	if c.BufferSize != 0 && (c.BufferSize < config.MinBufferSize || c.BufferSize > config.MaxBufferSize) {
		return fmt.Errorf("buffer size must be between %d and %d, got %d",
			config.MinBufferSize, config.MaxBufferSize, c.BufferSize)
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	cliArgs := &CLI{}
	exitCode := -1
	parser, err := kong.New(cliArgs,
		kong.Name("beatdetector"),
		kong.Description("Real-time beat and tempo tracking"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
		kong.Vars{
			"version": version,
		},
		kong.ExplicitGroups(cli.HelpGroups),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	_, err = parser.Parse(args)
	if exitCode >= 0 {
		// --help already printed
		return exitCode
	}
	if err != nil {
		cli.PrintError(err.Error())
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(false)
		}
		return 1
	}

	if cliArgs.Version {
		cli.PrintVersion(version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if cliArgs.Config != "" {
		if cfg, err = config.Load(cliArgs.Config); err != nil {
			cli.PrintError(err.Error())
			return 1
		}
	}
	if err := cfg.ApplyOverrides(config.Overrides{
		BufferSize:  cliArgs.BufferSize,
		NoLog:       cliArgs.NoLog,
		NoStats:     cliArgs.NoStats,
		Pitch:       cliArgs.Pitch,
		NoVisual:    cliArgs.NoVisual,
		Source:      cliArgs.Source,
		MetricsAddr: cliArgs.MetricsAddr,
		LogLevel:    cliArgs.LogLevel,
	}); err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logOut := stderr
	if cfg.Output.Visual {
		debugLog, err := os.OpenFile(debugLogName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logOut = io.Discard
		} else {
			defer debugLog.Close()
			logOut = debugLog
		}
	}
	logger := newLogger(cfg.Output.LogLevel, logOut)
	slog.SetDefault(logger)

	return detect(cfg, logger, stdout)
}

// detect builds the pipeline and its sinks, streams the source and prints
// the final statistics
func detect(cfg *config.Config, logger *slog.Logger, stdout io.Writer) int {
	start := time.Now()

	// ── Analysis engine and pipeline ──────────────────────────────────────────
	mainsHz := mains.Frequency()
	engineCfg := cfg.EngineConfig(mainsHz)
	engine, err := analysis.NewSpectralEngine(engineCfg)
	if err != nil {
		cli.PrintError(fmt.Sprintf("Failed to create analysis engine: %v", err))
		return 1
	}

	handoff := processor.NewHandoff(cfg.Detector.QueueSize)
	opts := cfg.PipelineOptions()
	opts.Engine = engine
	opts.Handoff = handoff
	pipeline, err := processor.NewPipeline(opts)
	if err != nil {
		_ = engine.Close()
		cli.PrintError(fmt.Sprintf("Failed to create pipeline: %v", err))
		return 1
	}
	defer pipeline.Close()

	spec, err := cfg.SourceSpec()
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	source, err := audio.NewSource(spec, cfg.Chunking())
	if err != nil {
		cli.PrintError(fmt.Sprintf("Failed to create audio source: %v", err))
		return 1
	}

	// ── Sinks ─────────────────────────────────────────────────────────────────
	var sinks []processor.EventSink

	var logPath string
	if cfg.Output.Log {
		beatLog, err := logging.CreateBeatLog(cfg.Output.LogDir, start)
		if err != nil {
			cli.PrintError(fmt.Sprintf("Failed to create beat log: %v", err))
			return 1
		}
		defer beatLog.Close()
		logPath = beatLog.Path()
		sinks = append(sinks, beatLog)
	}

	var (
		provider    *observe.Provider
		metricsSink *observe.MetricsSink
		server      *observe.Server
	)
	if cfg.Output.MetricsAddr != "" {
		provider, err = observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			cli.PrintError(fmt.Sprintf("Failed to initialise metrics: %v", err))
			return 1
		}
		defer provider.Shutdown(context.Background())

		metrics, err := observe.NewMetrics(provider.MeterProvider)
		if err != nil {
			cli.PrintError(fmt.Sprintf("Failed to create metrics: %v", err))
			return 1
		}
		metricsSink = observe.NewMetricsSink(metrics)
		sinks = append(sinks, metricsSink)

		health := observe.NewHealth(observe.StreamingCheck(metricsSink))
		server, err = observe.Listen(cfg.Output.MetricsAddr, provider.Handler(), health, logger)
		if err != nil {
			cli.PrintError(err.Error())
			return 1
		}
	}

	// ── Signal context ────────────────────────────────────────────────────────
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var program *tea.Program
	if cfg.Output.Visual {
		model := ui.NewModel(source.Describe(), cfg.Analysis.Pitch, cancel)
		program = tea.NewProgram(model, tea.WithOutput(stdout))
		sinks = append(sinks, ui.NewProgramSink(program))
	} else {
		sinks = append(sinks, ui.NewConsoleSink(stdout))
	}

	cli.PrintStartup(stdout, cli.Banner{
		Source:      source.Describe(),
		BufferSize:  engineCfg.HopSize,
		FFTSize:     engineCfg.WindowSize,
		SampleRate:  engineCfg.SampleRate,
		Method:      engineCfg.Method,
		MainsHz:     int(engineCfg.MainsHz),
		LogPath:     logPath,
		Stats:       cfg.Output.Stats,
		Pitch:       cfg.Analysis.Pitch,
		MetricsAddr: cfg.Output.MetricsAddr,
	})
	logger.Info("beatdetector starting",
		"source", source.Describe(),
		"buffer_size", engineCfg.HopSize,
		"method", engineCfg.Method,
		"mains_hz", engineCfg.MainsHz,
		"zone", mains.Zone(),
	)

	// ── Run ───────────────────────────────────────────────────────────────────
	dispatcher := processor.NewDispatcher(handoff, logger, sinks...)
	g, gctx := errgroup.WithContext(ctx)

	var sourceErr error
	g.Go(func() error {
		// The hand-off closes only after the source has stopped producing
		defer handoff.Close()
		sourceErr = source.Run(gctx, pipeline)
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if program != nil {
			program.Send(ui.DoneMsg{Err: pipeline.Err()})
		}
		// Everything downstream of the source is drained; stop the servers
		cancel()
		return err
	})

	if program != nil {
		g.Go(func() error {
			_, err := program.Run()
			cancel()
			if err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		})
	}

	if server != nil {
		g.Go(func() error {
			return server.Serve(gctx)
		})
	}

	runErr := g.Wait()
	end := time.Now()
	if sigCtx.Err() != nil {
		logger.Info("signal received, stopped gracefully")
	}

	// ── Final statistics ──────────────────────────────────────────────────────
	stats := pipeline.Statistics(end)
	if metricsSink != nil {
		metricsSink.Flush(stats.Counters, stats.DroppedEvents)
	}

	if sourceErr != nil && !errors.Is(sourceErr, context.Canceled) {
		logger.Error("audio source failed", "error", sourceErr)
		cli.PrintError(sourceErr.Error())
	}
	logger.Info("beatdetector stopped",
		"runtime", stats.Runtime,
		"frames", stats.Frames,
		"beats", stats.Beats,
		"dropped", stats.DroppedEvents,
	)

	if cfg.Output.Stats {
		cli.PrintStatistics(stdout, stats)
	}
	if logPath != "" {
		fmt.Fprintf(stdout, " Beat log: %s\n", logPath)
	}

	if runErr != nil {
		cli.PrintError(runErr.Error())
		return 1
	}
	return 0
}

// newLogger returns a text logger at level writing to w
func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
}
