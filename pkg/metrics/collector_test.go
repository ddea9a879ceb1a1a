package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsCommitsAndNotifications(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := New("test", registry)
	require.NoError(t, err)

	collector.ObserveCommit("counter", 2)
	collector.ObserveCommit("counter", 1)
	collector.ObserveNotification("counter", "effect")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.commits.WithLabelValues("counter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.notifications.WithLabelValues("counter", "effect")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.notifications.WithLabelValues("counter", "value")))
}

func TestCollectorLabelsDispatchResult(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := New("test", registry)
	require.NoError(t, err)

	collector.ObserveDispatch("counter", time.Millisecond, nil)
	collector.ObserveDispatch("counter", time.Millisecond, errors.New("boom"))
	collector.ObserveDispatch("counter", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.dispatches.WithLabelValues("counter", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.dispatches.WithLabelValues("counter", "error")))
}

func TestNewReusesRegisteredMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := New("test", registry)
	require.NoError(t, err)
	second, err := New("test", registry)
	require.NoError(t, err)

	first.ObserveCommit("counter", 1)
	second.ObserveCommit("counter", 2)
	second.ObserveCommit("counter", 3)
	second.ObserveDispatch("counter", time.Millisecond, nil)

	count, err := testutil.GatherAndCount(registry, "test_commits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 3.0, testutil.ToFloat64(first.commits.WithLabelValues("counter")))

	count, err = testutil.GatherAndCount(registry, "test_dispatches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
