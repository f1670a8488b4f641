package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-harness/config"
	"github.com/gaborage/go-bricks-harness/harness"
	"github.com/gaborage/go-bricks-harness/logger"
	"github.com/gaborage/go-bricks-harness/messaging"
	"github.com/gaborage/go-bricks-harness/metrics"
)

const (
	defaultConfigPath = "config.yaml"
	shutdownTimeout   = 5 * time.Second
)

var errTargetUnavailable = errors.New("HTTP target unavailable")

type rootOptions struct {
	configPath string
	environ    config.Environ
}

func newRootCommand(env config.Environ) *cobra.Command {
	opts := &rootOptions{environ: env}

	cmd := &cobra.Command{
		Use:           "harness",
		Short:         "Integration test harness for an httpbin-compatible service and RabbitMQ",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to the harness YAML configuration")

	cmd.AddCommand(newProbeCommand(opts), newMetricsCommand(opts), newConfigCommand(opts))
	return cmd
}

// session builds a harness session whose metrics server the commands manage themselves
func (o *rootOptions) session(ctx context.Context) (*harness.Session, error) {
	return harness.NewSession(ctx, harness.Options{
		ConfigPath:           o.configPath,
		Environ:              o.environ,
		DisableMetricsServer: true,
	})
}

func newProbeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether the HTTP target and a RabbitMQ broker are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, opts)
		},
	}
}

func runProbe(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	s, err := opts.session(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	out := cmd.OutOrStdout()
	targetOK := s.HTTPTargetAvailable(ctx)
	fmt.Fprintf(out, "http target %s: %s\n", s.Settings.BaseURL, availability(targetOK))

	switch url, ok := s.BrokerURL(ctx); {
	case s.Settings.SkipRabbitMQ:
		fmt.Fprintln(out, "rabbitmq: skipped")
	case ok:
		fmt.Fprintf(out, "rabbitmq %s: available\n", messaging.RedactURL(url))
	default:
		fmt.Fprintln(out, "rabbitmq: unavailable")
	}

	if !targetOK {
		return errTargetUnavailable
	}
	return nil
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}

type metricsOptions struct {
	host string
	port int
}

func newMetricsCommand(opts *rootOptions) *cobra.Command {
	mo := &metricsOptions{}

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve the harness Prometheus endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMetrics(cmd, opts, mo)
		},
	}
	cmd.Flags().StringVar(&mo.host, "host", "", "Interface to bind (empty binds all)")
	cmd.Flags().IntVar(&mo.port, "port", -1, "Port to bind (default metrics.port from the config)")
	return cmd
}

func runMetrics(cmd *cobra.Command, opts *rootOptions, mo *metricsOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := opts.session(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	port := s.Settings.Metrics.Port
	if mo.port >= 0 {
		port = mo.port
	}

	srv := metrics.NewServer(mo.host, port, s.Metrics, s.Logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s\n", srv.URL())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved settings with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := opts.environ
			if env == nil {
				env = config.OSEnviron()
			}
			settings, err := config.Load(opts.configPath, env)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}
}

func printSettings(w io.Writer, settings *config.Settings) {
	filterCfg := logger.DefaultFilterConfig()
	filterCfg.SensitiveFields = append(filterCfg.SensitiveFields, "url")
	filter := logger.NewSensitiveDataFilter(filterCfg)

	all := settings.All()
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "%s = %s\n", key, filter.FilterString(key, fmt.Sprint(all[key])))
	}
}

func closeSession(s *harness.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("session close failed")
	}
}
