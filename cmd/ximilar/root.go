package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/ximilar-client/pkg/config"
	"github.com/Sternrassler/ximilar-client/pkg/logging"
	"github.com/Sternrassler/ximilar-client/pkg/metrics"
	"github.com/Sternrassler/ximilar-client/pkg/ximilar"
)

// session holds the state shared by all commands of one invocation.
type session struct {
	configFile  string
	workspace   string
	logLevel    string
	debug       bool
	metricsAddr string

	cfg     *config.Config
	logger  zerolog.Logger
	metrics *http.Server
	app     *ximilar.App
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, s := newRootCmd()
	err := root.ExecuteContext(ctx)
	if tErr := s.teardown(); err == nil {
		err = tErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:   "ximilar",
		Short: "A CLI client for the Ximilar computer vision API",
		Long: `ximilar talks to the Ximilar REST API. Credentials and defaults are read
from XIMILAR_* environment variables, an optional .env file and an optional
YAML config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.configFile, "config", "", "YAML config file")
	flags.StringVarP(&s.workspace, "workspace", "w", "", "Workspace name (overrides XIMILAR_WORKSPACE)")
	flags.StringVar(&s.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.BoolVar(&s.debug, "debug", false, "Dump requests and replies at debug level")
	flags.StringVar(&s.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newWorkspacesCmd(s),
		newAccessCmd(s),
		newLabelsCmd(s),
		newClassifyCmd(s),
		newVersionCmd(),
	)
	return root, s
}

// setup loads the configuration and starts logging and the metrics server.
func (s *session) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(s.configFile)
	if err != nil {
		return err
	}

	if s.workspace != "" {
		cfg.Workspace = s.workspace
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	if s.debug {
		cfg.Debug = true
		cfg.LogLevel = string(logging.LevelDebug)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ximilar-cli/" + Version
	}
	s.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.File = cfg.LogFile
	logging.Setup(logCfg)
	s.logger = logging.NewLogger("cli")

	if s.metricsAddr != "" {
		return s.serveMetrics()
	}
	return nil
}

func (s *session) serveMetrics() error {
	listener, err := net.Listen("tcp", s.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.metrics.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Serving metrics")
	return nil
}

// client returns the app for this invocation, creating it on first use.
func (s *session) client(ctx context.Context) (*ximilar.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	app, err := ximilar.FromEnv(ctx, *s.cfg)
	if err != nil {
		return nil, err
	}
	s.app = app
	return app, nil
}

// teardown releases the app and stops the metrics server. It is safe to call
// more than once.
func (s *session) teardown() error {
	var errs []error
	if s.app != nil {
		errs = append(errs, s.app.Close())
		s.app = nil
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, s.metrics.Shutdown(ctx))
		s.metrics = nil
	}
	return errors.Join(errs...)
}
