package reactor

import (
	"time"

	"github.com/goliatone/go-reactor/pkg/activity"
)

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	logger        Logger
	services      ServiceProvider
	metrics       MetricsRecorder
	activityHooks activity.Hooks
	activity      *activity.Config
}

func applyOptions(opts []Option) runtimeConfig {
	cfg := runtimeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg runtimeConfig) loggerOrNoop() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

// activityConfig enables emission by default once hooks are attached.
func (cfg runtimeConfig) activityConfig() activity.Config {
	if cfg.activity != nil {
		return *cfg.activity
	}
	return activity.Config{Enabled: len(cfg.activityHooks) > 0}
}

// WithLogger attaches a runtime logger.
func WithLogger(logger Logger) Option {
	return func(cfg *runtimeConfig) {
		cfg.logger = logger
	}
}

// WithServiceProvider sets the provider handed to every action.
func WithServiceProvider(provider ServiceProvider) Option {
	return func(cfg *runtimeConfig) {
		cfg.services = provider
	}
}

// WithMetrics records commits, notifications and dispatches on recorder.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(cfg *runtimeConfig) {
		cfg.metrics = recorder
	}
}

// WithActivityHooks attaches hooks that receive state lifecycle events.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *runtimeConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides activity emission defaults.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *runtimeConfig) {
		cfg.activity = &config
	}
}

// MetricsRecorder receives runtime measurements. pkg/metrics provides a
// Prometheus implementation.
type MetricsRecorder interface {
	ObserveCommit(stateType string, topics int)
	ObserveNotification(stateType, kind string)
	ObserveDispatch(stateType string, duration time.Duration, err error)
}
