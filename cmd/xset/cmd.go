package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xset/lib/infra"
	"github.com/benz9527/xset/observability"
	"github.com/benz9527/xset/workload"
	"github.com/benz9527/xset/xlog"
)

var version = "v0.0.1"

type banner struct{}

func (banner) JSON() string {
	return fmt.Sprintf(`{"app":"xset","version":%q,"go":%q}`, version, runtime.Version())
}

func (banner) PlainText() string {
	return fmt.Sprintf("xset %s (%s), balanced ordered sets workload", version, runtime.Version())
}

type runFlags struct {
	config        string
	strategy      string
	keys          int
	ops           int
	pattern       string
	workers       int
	seed          uint64
	validateEvery int
	metrics       string
	metricsAddr   string
	reportDB      string
	logLevel      string
	plainText     bool
}

// apply overrides the config by the flags set explicitly.
func (f *runFlags) apply(cmd *cobra.Command, cfg *workload.Config) {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategy = f.strategy
	}
	if flags.Changed("keys") {
		cfg.Keys = f.keys
	}
	if flags.Changed("ops") {
		cfg.Ops = f.ops
	}
	if flags.Changed("pattern") {
		cfg.Pattern = workload.Pattern(f.pattern)
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if flags.Changed("validate-every") {
		cfg.ValidateEvery = f.validateEvery
	}
	if flags.Changed("metrics") {
		cfg.Metrics = f.metrics
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if flags.Changed("report-db") {
		cfg.ReportDB = f.reportDB
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "xset",
		Short:         "Balanced ordered sets (AVL / red-black) workload driver",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print xset version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the add/remove/contains workload on the ordered sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := workload.LoadConfig(f.config)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err = cfg.Validate(); err != nil {
				return err
			}
			_, err = runWorkload(cmd.Context(), cfg, f.plainText, cmd.OutOrStdout())
			return err
		},
	}
	def := workload.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "workload YAML config file")
	flags.StringVar(&f.strategy, "strategy", def.Strategy, "balancing strategy: avl, rb or both")
	flags.IntVar(&f.keys, "keys", def.Keys, "key space size")
	flags.IntVar(&f.ops, "ops", def.Ops, "operations per worker")
	flags.StringVar(&f.pattern, "pattern", string(def.Pattern), "key pattern: sequential, reverse or random")
	flags.IntVar(&f.workers, "workers", def.Workers, "workers per strategy, each owns its set")
	flags.Uint64Var(&f.seed, "seed", def.Seed, "random seed")
	flags.IntVar(&f.validateEvery, "validate-every", def.ValidateEvery, "validate the invariants every N operations, 0 validates at the end only")
	flags.StringVar(&f.metrics, "metrics", def.Metrics, "metrics exporter: none, console or prometheus")
	flags.StringVar(&f.metricsAddr, "metrics-addr", def.MetricsAddr, "prometheus /metrics listen address")
	flags.StringVar(&f.reportDB, "report-db", def.ReportDB, "SQLite file to store the run reports, empty disables it")
	flags.StringVar(&f.logLevel, "log-level", def.LogLevel, "log level: DEBUG, INFO, WARN or ERROR")
	flags.BoolVar(&f.plainText, "plain", false, "plain text logs instead of JSON")
	return cmd
}

type appParams struct {
	fx.In

	Config   *workload.Config
	Logger   xlog.XLogger
	Exporter *observability.MetricsExporter
	Store    *workload.ReportStore // Nil if the report db is absent.
	Runner   *workload.Runner
}

func newLogger(cfg *workload.Config, plainText bool, out io.Writer) xlog.XLogger {
	enc := xlog.JSON
	if plainText {
		enc = xlog.PlainText
	}
	return xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.LogLevel)),
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerWriter(out),
		xlog.WithXLoggerContextFieldExtract(workload.ContextKeyRunID),
		xlog.WithXLoggerContextFieldExtract(workload.ContextKeyStrategy, xlog.ContextKeyMapToOmitempty),
		xlog.WithXLoggerContextFieldExtract(workload.ContextKeyWorker, xlog.ContextKeyMapToOmitempty),
	)
}

func newMetricsExporter(lc fx.Lifecycle, cfg *workload.Config, out io.Writer) (*observability.MetricsExporter, error) {
	exporter, err := observability.InitMetricsExporter(context.Background(), cfg.MetricsKind(),
		observability.WithConsoleWriter(out),
		observability.WithPrometheusAddr(cfg.MetricsAddr),
	)
	if err != nil {
		return nil, err
	}
	if exporter.Kind() != observability.MetricsNone {
		observability.InitAppStats("xset")
	}
	lc.Append(fx.StopHook(exporter.Shutdown))
	return exporter, nil
}

func newReportStore(lc fx.Lifecycle, cfg *workload.Config, logger xlog.XLogger) (*workload.ReportStore, error) {
	if len(strings.TrimSpace(cfg.ReportDB)) == 0 {
		return nil, nil
	}
	store, err := workload.OpenReportStore(cfg.ReportDB, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(store.Close))
	return store, nil
}

func newRunner(lc fx.Lifecycle, cfg *workload.Config, logger xlog.XLogger) (*workload.Runner, error) {
	runner, err := workload.NewRunner(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(runner.Release))
	return runner, nil
}

// runWorkload starts the fx app, runs the workload once and stops the app.
func runWorkload(ctx context.Context, cfg *workload.Config, plainText bool, out io.Writer) (*workload.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg, plainText, out)
	logger.Banner(banner{})
	defer func() {
		_ = logger.Sync()
	}()

	var (
		runner *workload.Runner
		store  *workload.ReportStore
	)
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Supply(cfg),
		fx.Provide(
			func() io.Writer { return out },
			func() xlog.XLogger { return logger },
			newMetricsExporter,
			newReportStore,
			newRunner,
		),
		fx.Invoke(func(p appParams) {
			runner, store = p.Runner, p.Store
		}),
	)
	if err := app.Start(ctx); err != nil {
		logger.ErrorStack(infra.WrapErrorStack(err), "xset app start failed")
		return nil, err
	}

	report, runErr := runner.Run(ctx)
	if runErr != nil {
		logger.ErrorStack(infra.WrapErrorStack(runErr), "xset workload failed")
	}
	if store != nil && report != nil {
		runErr = saveReport(ctx, logger, store, cfg.ReportDB, report, runErr)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		runErr = multierr.Append(runErr, err)
	}
	return report, runErr
}

// saveReport stores the report of a failed run too, the save error is
// appended to the workload error.
func saveReport(
	ctx context.Context,
	logger xlog.XLogger,
	store *workload.ReportStore,
	dsn string,
	report *workload.Report,
	runErr error,
) error {
	if err := store.Save(ctx, report); err != nil {
		logger.ErrorStack(err, "xset report save failed")
		return multierr.Append(runErr, err)
	}
	logger.Info("xset report saved",
		zap.String("runID", report.RunID),
		zap.String("env", report.Env),
		zap.String("db", dsn),
	)
	return runErr
}
