package metrics

import (
	"casehub/retry"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything exposing retry counters, usually a *retry.Executor
type StatsSource interface {
	Stats() retry.Stats
}

// RetryCollector exports the counters of a retry executor.
// The executor owns the values; the collector only reads them at scrape time.
type RetryCollector struct {
	source StatsSource

	tasks    *prometheus.Desc
	retries  *prometheus.Desc
	timeouts *prometheus.Desc
	failed   *prometheus.Desc
}

// NewRetryCollector creates a collector for source
func NewRetryCollector(source StatsSource) *RetryCollector {
	return &RetryCollector{
		source:   source,
		tasks:    prometheus.NewDesc("casehub_retry_tasks_total", "Total number of tasks submitted to the retry executor", nil, nil),
		retries:  prometheus.NewDesc("casehub_retry_retries_total", "Total number of attempts beyond the first", nil, nil),
		timeouts: prometheus.NewDesc("casehub_retry_timeouts_total", "Total number of attempts abandoned after their budget elapsed", nil, nil),
		failed:   prometheus.NewDesc("casehub_retry_failed_tasks_total", "Total number of tasks that exhausted all attempts", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *RetryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasks
	ch <- c.retries
	ch <- c.timeouts
	ch <- c.failed
}

// Collect implements prometheus.Collector
func (c *RetryCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(stats.TasksSubmitted))
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(stats.Retries))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(stats.FailedTasks))
}
