package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded in vet360_jobs_total.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDropped = "dropped"
)

// Metrics holds the worker's task collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers task metrics on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one task run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing a run of task. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(task string) *Tracker {
	if m == nil {
		return &Tracker{task: task}
	}
	return &Tracker{metrics: m, task: task, start: m.now()}
}

// End records the run as a success or failure and returns err unchanged.
func (t *Tracker) End(err error) error {
	if err != nil {
		t.record(StatusFailure)
		return err
	}
	t.record(StatusSuccess)
	return nil
}

// Drop records a run rejected without retry, such as a malformed payload,
// and returns err unchanged.
func (t *Tracker) Drop(err error) error {
	t.record(StatusDropped)
	return err
}

func (t *Tracker) record(status string) {
	if t == nil || t.metrics == nil || t.task == "" {
		return
	}
	m := t.metrics
	now := m.now()
	m.runs.WithLabelValues(t.task, status).Inc()
	m.duration.WithLabelValues(t.task).Observe(now.Sub(t.start).Seconds())
	if status == StatusSuccess {
		m.lastSuccess.WithLabelValues(t.task).Set(float64(now.Unix()))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vet360_jobs_total",
		Help: "Task runs by task type and outcome.",
	}, []string{"task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vet360_job_duration_seconds",
		Help:    "Task run duration by task type.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"task"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vet360_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run by task type.",
	}, []string{"task"})
	registerer.MustRegister(runs, duration, lastSuccess)
	return &Metrics{runs: runs, duration: duration, lastSuccess: lastSuccess, now: time.Now}
}
