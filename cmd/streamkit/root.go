package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/version"
)

const serviceName = "streamkit"

// app carries state shared by the subcommands of one invocation.
type app struct {
	configFile string
	envFile    string
	logLevel   string

	cfg      *config.StreamConfig
	log      *logger.Logger
	metrics  *observability.Metrics
	shutdown []func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Evaluate lazy integer pipelines",
		Long: `streamkit builds a lazy pull-based pipeline over integers, runs one
terminal operation on it and prints the result.

Nothing upstream is evaluated beyond what the terminal operation pulls, so
infinite sources are fine as long as a limit bounds them.`,
		Version:            version.GetShortVersion(),
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: search cmd/streamkit, config/, ./)")
	flags.StringVar(&a.envFile, "env-file", "", ".env file loaded before STREAMKIT_* variables are read")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCmd(a),
		newDemoCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and initializes logging and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var opts []config.LoaderOption
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	if a.envFile != "" {
		opts = append(opts, config.WithEnvFile(a.envFile))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return errors.InvalidArgument("log-level", err.Error())
		}
	}
	if cfg.Version == "" {
		cfg.Version = version.GetShortVersion()
	}
	a.cfg = cfg

	logger.Init(cfg.Logging)
	a.log = logger.Get("cli")
	a.log.Debug("configuration loaded", logger.Fields(
		"environment", cfg.Environment,
		"max_elements", cfg.Pipeline.MaxElements,
		"telemetry", cfg.Telemetry.Enabled,
	))

	if !cfg.Telemetry.Enabled {
		return nil
	}
	return a.initTelemetry(cmd.Context())
}

func (a *app) initTelemetry(ctx context.Context) error {
	t := a.cfg.Telemetry

	tc := observability.DefaultTracerConfig(a.cfg.Name)
	tc.ServiceVersion, tc.Environment = a.cfg.Version, a.cfg.Environment
	tc.Endpoint, tc.Insecure, tc.SampleRate = t.Endpoint, t.Insecure, t.Sampling()
	tp, err := observability.InitTracer(ctx, tc)
	if err != nil {
		return err
	}
	a.shutdown = append(a.shutdown, tp.Shutdown)

	mc := observability.DefaultMeterConfig(a.cfg.Name)
	mc.ServiceVersion, mc.Environment = a.cfg.Version, a.cfg.Environment
	mc.Endpoint, mc.Insecure, mc.Interval = t.Endpoint, t.Insecure, t.Interval
	mp, err := observability.InitMeter(ctx, mc)
	if err != nil {
		return err
	}
	a.shutdown = append(a.shutdown, mp.Shutdown)

	a.metrics, err = observability.NewMetrics(observability.Meter())
	return err
}

// teardown flushes telemetry.
func (a *app) teardown(*cobra.Command, []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.log.WithError(err).Warn("telemetry shutdown failed")
		}
	}
	a.shutdown = nil
	return nil
}
