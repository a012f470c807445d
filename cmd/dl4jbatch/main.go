package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/knime/knime-dl4j-sub000/internal/pipeline"
	"github.com/knime/knime-dl4j-sub000/pkg/config"
	"github.com/knime/knime-dl4j-sub000/pkg/logger"
	"github.com/knime/knime-dl4j-sub000/pkg/observability"

	// Register every table source
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DL4J")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "dl4jbatch",
		Short: "Turn tables into training batches",
		Long: `dl4jbatch reads a table (CSV, JSON lines, Arrow, Avro or SQL), converts every
cell through the converter registry and groups the encoded examples into
feature/target batches.

Example:
  dl4jbatch inspect --config iris.yaml
  dl4jbatch drain --config iris.yaml --epochs 3 --batch-size 64`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to the run configuration YAML file (required)")
	flags.Int("batch-size", 0, "Examples per batch, overrides iterator.batch_size")
	flags.String("log-level", "", "Log level (debug, info, warn, error), overrides observability.log_level")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("trace", false, "Export spans to stderr")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newInspectCommand(v),
		newDrainCommand(v),
		newExportCommand(v),
		newConvertersCommand(v),
	)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dl4jbatch v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	return root
}

// env holds what every command needs once the configuration is loaded.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	shutdown []func(context.Context) error
}

// setup loads the configuration, applies flag and environment overrides and
// brings up logging, tracing and the metrics endpoint.
func setup(v *viper.Viper) (*env, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}

	cfg := config.NewConfig("dl4jbatch")
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, err
	}
	e := &env{
		cfg: cfg,
		log: logger.Component(logger.Get(), "cli").With(zap.String("run", cfg.Name)),
	}

	tracingShutdown, err := observability.Init(cfg.Observability.Tracing)
	if err != nil {
		return nil, err
	}
	e.shutdown = append(e.shutdown, tracingShutdown)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		e.log.Info("serving metrics", zap.String("addr", addr))
		e.shutdown = append(e.shutdown, srv.Shutdown)
	}
	return e, nil
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// applyOverrides copies explicitly set flags and DL4J_* variables over the
// file configuration.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	if v.IsSet("batch-size") && v.GetInt("batch-size") > 0 {
		cfg.Iterator.BatchSize = v.GetInt("batch-size")
	}
	if v.IsSet("log-level") && v.GetString("log-level") != "" {
		cfg.Observability.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("metrics-addr") && v.GetString("metrics-addr") != "" {
		cfg.Observability.MetricsAddr = v.GetString("metrics-addr")
	}
	if v.GetBool("trace") {
		cfg.Observability.Tracing.Enabled = true
	}
	if v.IsSet("epochs") && v.GetInt("epochs") > 0 {
		cfg.Iterator.Epochs = v.GetInt("epochs")
	}
}

// close flushes spans, stops the metrics server and syncs the logger.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range e.shutdown {
		if err := fn(ctx); err != nil {
			e.log.Warn("shutdown failed", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

// withSession runs fn against an open session, cancelled on SIGINT/SIGTERM.
func withSession(v *viper.Viper, fn func(ctx context.Context, e *env, s *pipeline.Session) error) error {
	e, err := setup(v)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := pipeline.Open(ctx, e.cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			e.log.Warn("failed to close session", zap.Error(cerr))
		}
	}()
	return fn(ctx, e, s)
}
