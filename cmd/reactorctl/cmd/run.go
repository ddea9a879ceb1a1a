package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	reactor "github.com/goliatone/go-reactor"
	"github.com/goliatone/go-reactor/internal/scenario"
	"github.com/goliatone/go-reactor/pkg/activity"
	"github.com/goliatone/go-reactor/pkg/logging/zaplog"
	"github.com/goliatone/go-reactor/pkg/metrics"
)

// maxParallel bounds how many scenario files run at once.
const maxParallel = 4

func newRunCmd() *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Replay scenario files and print every watch change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := zaplog.New(cfg.Logging.Level)
			//nolint:errcheck // Nothing useful to do when stdout cannot be synced.
			defer log.Sync()

			err = runAll(ctx, cfg, log, args)
			if !watchFiles {
				return err
			}
			if err != nil {
				log.Warnw("scenario failed", "error", err)
			}
			return watch(ctx, log, args, func(ctx context.Context, path string) error {
				return run(ctx, cfg, log.With("scenario", path), path)
			})
		},
	}
	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "re-run a scenario whenever its file changes")
	return cmd
}

func loadConfig() (reactor.Config, error) {
	if configPath == "" {
		return reactor.DefaultConfig(), nil
	}
	return reactor.LoadConfig(configPath)
}

// runAll replays every scenario, each on its own runtime, and returns the
// first failure.
func runAll(ctx context.Context, cfg reactor.Config, log *zap.SugaredLogger, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, path := range paths {
		g.Go(func() error {
			return run(gctx, cfg, log.With("scenario", path), path)
		})
	}
	return g.Wait()
}

func run(ctx context.Context, cfg reactor.Config, log *zap.SugaredLogger, path string) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}

	opts := append(cfg.Options(),
		reactor.WithLogger(zaplog.NewLogger(log)),
		reactor.WithActivityHooks(activity.Hooks{activity.HookFunc(func(_ context.Context, event activity.Event) error {
			log.Infow("activity", "verb", event.Verb, "object", event.ObjectID, "channel", event.Channel)
			return nil
		})}),
	)

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		collector, err := metrics.New(cfg.Metrics.Namespace, registry)
		if err != nil {
			return fmt.Errorf("reactorctl: metrics: %w", err)
		}
		opts = append(opts, reactor.WithMetrics(collector))
	}

	report, err := scenario.Run(ctx, s, opts...)
	for _, change := range report.Changes {
		log.Infow("watch", "step", change.Step, "name", change.Watch, "value", change.Value, "revision", change.Revision)
	}
	log.Infow("final", fieldsKV(report.Final, "revision", report.Revision)...)
	if registry != nil {
		logMetrics(log, registry)
	}
	return err
}

func fieldsKV(fields map[string]any, kvs ...any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kvs = append(kvs, key, fields[key])
	}
	return kvs
}

func logMetrics(log *zap.SugaredLogger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		log.Warnw("gather metrics", "error", err)
		return
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]any, 0, 2*len(metric.GetLabel())+2)
			labels = append(labels, "metric", family.GetName())
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName(), label.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				log.Infow("counter", append(labels, "value", metric.GetCounter().GetValue())...)
			case metric.GetHistogram() != nil:
				log.Infow("histogram", append(labels, "count", metric.GetHistogram().GetSampleCount(), "sum", metric.GetHistogram().GetSampleSum())...)
			}
		}
	}
}
