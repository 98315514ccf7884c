package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/YuminosukeSato/scoreml/config"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
)

// logFileLayout names each run log after its start time.
const logFileLayout = "01_02_2006_15_04_05"

// app carries what every subcommand needs. It is populated by the root
// command's PersistentPreRunE and released by close.
type app struct {
	cfgFile  string
	trace    bool
	logLevel string

	cfg     config.Config
	logger  log.Logger
	logPath string
	tracer  trace.TracerProvider

	closers []func() error

	// stdinIsTerminal reports whether forms may be shown. Nil means check
	// os.Stdin.
	stdinIsTerminal func() bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "scoreml",
		Short:         "Train and serve the student math score model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file path (default "+config.DefaultPath+" when present)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "print evaluation spans to stderr")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newTrainCmd(a))
	root.AddCommand(newPredictCmd(a))
	root.AddCommand(newRunsCmd(a))
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := os.MkdirAll(cfg.Log.Dir, 0o750); err != nil {
		return errors.NewPersistenceError("create", cfg.Log.Dir, err)
	}
	a.logPath = filepath.Join(cfg.Log.Dir, time.Now().Format(logFileLayout)+".log")
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return errors.NewPersistenceError("open", a.logPath, err)
	}
	a.closers = append(a.closers, f.Close)

	a.logger = log.NewMultiLogger(level, f, stderr)
	restore := log.RouteWarnings(a.logger)
	a.closers = append(a.closers, func() error { restore(); return nil })

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return errors.Wrap(err, "create trace exporter")
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		a.tracer = tp
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
