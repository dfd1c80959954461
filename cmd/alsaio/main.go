// Command alsaio plays and captures audio through the ALSA mmap backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsaio/backend"
	"github.com/gen2brain/alsaio/internal/config"
	"github.com/gen2brain/alsaio/internal/logging"
)

// app holds what the persistent flags set up for the subcommands.
type app struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string

	cfg    *config.File
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "alsaio",
		Short:         "Play and capture audio through ALSA memory-mapped ring buffers",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json, journal)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	root.AddCommand(
		newDevicesCmd(a),
		newToneCmd(a),
		newPlayCmd(a),
		newCaptureCmd(a),
		newInfoCmd(a),
	)

	return root
}

// setup loads the configuration, initializes logging and starts the metrics endpoint.
// Flags win over the configuration file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg

	logCfg := cfg.Logging()
	if cmd.Flags().Changed("log-level") {
		logCfg.Level = a.logLevel
	}

	if cmd.Flags().Changed("log-format") {
		logCfg.Format = a.logFormat
	}

	logging.Initialize(logCfg)
	a.logger = logging.GetLogger("cli")

	if a.metricsAddr != "" {
		a.serveMetrics()
	}

	return nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: a.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", a.metricsAddr, "error", err)
		}
	}()

	a.logger.Info("Serving metrics", "addr", a.metricsAddr)
}

// backend enumerates the hardware and returns a backend using the loaded configuration.
func (a *app) backend() *backend.Backend {
	return backend.New(backend.Options{
		Config: a.cfg,
		Errors: errorLogger{a.logger},
		Logger: logging.GetLogger("alsa"),
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// errorLogger reports backend error codes to the log.
type errorLogger struct {
	logger *slog.Logger
}

func (e errorLogger) SetError(code backend.ErrorCode) {
	e.logger.Warn("Device error", "code", code.String())
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
