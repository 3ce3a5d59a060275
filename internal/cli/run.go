package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pioneer-egui/timeline/internal/config"
	"github.com/pioneer-egui/timeline/internal/dispatcher"
	"github.com/pioneer-egui/timeline/internal/frame"
	"github.com/pioneer-egui/timeline/internal/influx"
	"github.com/pioneer-egui/timeline/internal/ingest"
	"github.com/pioneer-egui/timeline/internal/logging"
	"github.com/pioneer-egui/timeline/internal/monitor"
	intOtel "github.com/pioneer-egui/timeline/internal/otel"
	"github.com/pioneer-egui/timeline/internal/script"
)

const shutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	ConfigDir        string
	Script           string
	HeadlessLogEvery uint64
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the frame loop",
		Long: `Start the frame loop with the websocket ingest server and, when a script
is given, the Lua scripting host.

Example:
  pioneer run --config . --script demo.lua
  pioneer run --headless-log-every 60`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigDir, "config", ".", "directory containing "+config.FileName)
	cmd.Flags().StringVar(&opts.Script, "script", "", "Lua script to load (overrides script.path)")
	cmd.Flags().Uint64Var(&opts.HeadlessLogEvery, "headless-log-every", 0, "log a state summary every N frames (0 disables)")

	return cmd
}

// app holds everything run wires together, in shutdown order.
type app struct {
	logs    *logging.SlogManager
	logger  *slog.Logger
	otel    *intOtel.Provider
	server  *ingest.Server
	monitor *monitor.Service
	influx  *influx.Manager
	files   []io.Closer
}

func run(ctx context.Context, opts *RunOptions) error {
	start := time.Now()

	found, err := config.Load(opts.ConfigDir)
	if err != nil {
		return err
	}

	a := &app{logs: logging.NewSlogManager()}
	defer a.close()

	var current atomic.Pointer[frame.Driver]
	frames := func() uint64 {
		if d := current.Load(); d != nil {
			return d.Frames()
		}
		return 0
	}
	if err := a.setupLogging(ctx, start, logging.FrameContext(frames)); err != nil {
		return err
	}
	if !found {
		a.logger.Warn("Config file not found, using defaults", "dir", opts.ConfigDir, "file", config.FileName)
	}
	a.logger.Info("Starting up", "version", Version, "buildDate", BuildDate)

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.logs.Component("dispatcher")), config.GetPlaybackConfig())
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	a.server = ingest.New(config.GetIngestConfig(), a.logger.With("component", "ingest"))
	if err := a.server.Start(); err != nil {
		return err
	}

	deps := frame.Deps{
		Source:   a.server,
		Timeline: d,
		Renderer: &frame.LogRenderer{Logger: a.logger.With("component", "render"), Every: opts.HeadlessLogEvery},
	}

	scriptPath := opts.Script
	if scriptPath == "" {
		scriptPath = config.GetScriptConfig().Path
	}
	if scriptPath != "" {
		host := script.New(d, a.logger.With("component", "script"))
		if err := host.RunFile(scriptPath); err != nil {
			return err
		}
		deps.Stepper = host
	}

	if mon := a.setupMonitor(ctx); mon != nil {
		deps.Stats = mon
	}

	driver := frame.New(config.GetFrameConfig(), deps, a.logger.With("component", "frame"))
	current.Store(driver)
	return driver.Run(ctx)
}

func (a *app) setupLogging(ctx context.Context, start time.Time, frames logging.ContextProvider) error {
	logsDir := config.GetString("logsDir")

	var logFile io.Writer
	if logsDir != "" {
		f, err := logging.OpenLogFile(logsDir, AppName, start)
		if err != nil {
			return err
		}
		a.files = append(a.files, f)
		logFile = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && logsDir != "" {
		f, err := logging.OpenLogFile(logsDir, AppName+".otel", start)
		if err != nil {
			return err
		}
		a.files = append(a.files, f)
		otelCfg.LogWriter = f
	}
	provider, err := intOtel.New(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("create otel provider: %w", err)
	}
	a.otel = provider

	a.logs.Setup(logFile, config.GetString("logLevel"), provider.LoggerProvider(), frames)
	a.logger = a.logs.Logger()
	return nil
}

// setupMonitor connects InfluxDB and starts the frame monitor. It returns
// nil when InfluxDB is disabled or unusable.
func (a *app) setupMonitor(ctx context.Context) *monitor.Service {
	influxCfg := config.GetInfluxConfig()
	backup := filepath.Join(config.GetString("logsDir"), AppName+".influx.gz")
	m := influx.NewManager(influxCfg, a.logs.Component("influx"), backup)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			a.logger.Error("InfluxDB setup failed", "error", err)
		}
		_ = m.Close()
		return nil
	}
	a.influx = m

	monCfg := config.GetMonitorConfig()
	if host, err := os.Hostname(); err == nil {
		monCfg.Host = host
	}
	a.monitor = monitor.NewService(monCfg, monitor.Dependencies{
		Writer: m,
		Logger: a.logger.With("component", "monitor"),
	})
	a.monitor.Start()
	return a.monitor
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("Ingest shutdown failed", "error", err)
		}
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("InfluxDB close failed", "error", err)
		}
	}
	if a.logger != nil {
		a.logger.Info("Shut down")
	}
	if err := a.logs.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "log flush:", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown:", err)
		}
	}
	for _, f := range a.files {
		_ = f.Close()
	}
}
