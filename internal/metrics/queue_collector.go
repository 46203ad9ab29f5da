package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const queueStatsTimeout = 5 * time.Second

// QueueStatsFunc returns the number of queue rows per status
type QueueStatsFunc func(ctx context.Context) (map[string]int64, error)

// queueCollector reads the queue row counts on every scrape
type queueCollector struct {
	desc    *prometheus.Desc
	stats   QueueStatsFunc
	timeout time.Duration
}

func newQueueCollector(stats QueueStatsFunc) *queueCollector {
	return &queueCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_jobs"),
			"Rows in the job queue by status",
			[]string{labelStatus},
			nil,
		),
		stats:   stats,
		timeout: queueStatsTimeout,
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}

	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), status)
	}
}

// RegisterQueueStats exposes scrapequeue_queue_jobs, read through stats at scrape time
func (m *Metrics) RegisterQueueStats(stats QueueStatsFunc) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(newQueueCollector(stats))
}
