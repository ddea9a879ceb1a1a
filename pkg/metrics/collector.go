// Package metrics records runtime activity as Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements reactor.MetricsRecorder.
type Collector struct {
	commits          *prometheus.CounterVec
	commitTopics     *prometheus.HistogramVec
	notifications    *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

// New builds a Collector and registers its metrics on registerer. A nil
// registerer uses prometheus.DefaultRegisterer.
func New(namespace string, registerer prometheus.Registerer) (*Collector, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	c := &Collector{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Snapshots committed per state type.",
		}, []string{"state"}),
		commitTopics: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_topics",
			Help:      "Topics emitted per commit, self included.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}, []string{"state"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Reaction notifications by state type and reaction kind.",
		}, []string{"state", "kind"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched actions by state type and result.",
		}, []string{"state", "result"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Action run time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"state"}),
	}

	var err error
	if c.commits, err = register(registerer, c.commits); err != nil {
		return nil, err
	}
	if c.commitTopics, err = register(registerer, c.commitTopics); err != nil {
		return nil, err
	}
	if c.notifications, err = register(registerer, c.notifications); err != nil {
		return nil, err
	}
	if c.dispatches, err = register(registerer, c.dispatches); err != nil {
		return nil, err
	}
	if c.dispatchDuration, err = register(registerer, c.dispatchDuration); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds collector to registerer. When an identical collector is
// already registered the existing one is returned so observations reach the
// exported series.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return collector, err
}

func (c *Collector) ObserveCommit(stateType string, topics int) {
	c.commits.WithLabelValues(stateType).Inc()
	c.commitTopics.WithLabelValues(stateType).Observe(float64(topics))
}

func (c *Collector) ObserveNotification(stateType, kind string) {
	c.notifications.WithLabelValues(stateType, kind).Inc()
}

func (c *Collector) ObserveDispatch(stateType string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.dispatches.WithLabelValues(stateType, result).Inc()
	c.dispatchDuration.WithLabelValues(stateType).Observe(duration.Seconds())
}
