package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const task = "profile:audit"

func TestTrackerCountsOutcomes(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.now = func() time.Time { return time.Unix(1_760_000_000, 0) }

	require.NoError(t, metrics.Track(task).End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track(task).End(boom), boom)
	require.ErrorIs(t, metrics.Track(task).Drop(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(task, StatusSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(task, StatusFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(task, StatusDropped)))
	require.Equal(t, 1_760_000_000.0, testutil.ToFloat64(metrics.lastSuccess.WithLabelValues(task)))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("x").End(boom), boom)
	require.ErrorIs(t, metrics.Track("x").Drop(boom), boom)
}
