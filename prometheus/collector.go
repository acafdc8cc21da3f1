// Package prometheus exports entitydb metrics through client_golang.
//
//	c := prometheus.NewCollector("entitydb", prom.DefaultRegisterer)
//	db, err := entitydb.Open(ctx, cfg, entitydb.WithMetricsCollector(c))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/entitydb"
)

// Collector implements entitydb.MetricsCollector with Prometheus
// histograms and counters.
type Collector struct {
	opLatency    *prom.HistogramVec
	batchItems   *prom.CounterVec
	batchFailed  *prom.CounterVec
	queryResults *prom.HistogramVec
}

var _ entitydb.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics under namespace and registers them
// with reg. A nil reg leaves them unregistered; register the Collector
// itself later, it implements prom.Collector. It panics when reg already
// holds metrics of the same name.
func NewCollector(namespace string, reg prom.Registerer) *Collector {
	c := &Collector{
		opLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of database operations.",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "kind", "status"}),
		batchItems: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Items processed by batch operations.",
		}, []string{"op"}),
		batchFailed: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_failed_total",
			Help:      "Batch items that returned an error.",
		}, []string{"op"}),
		queryResults: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of results returned per query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(c)
	}
	return c
}

// Describe implements prom.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	c.opLatency.Describe(ch)
	c.batchItems.Describe(ch)
	c.batchFailed.Describe(ch)
	c.queryResults.Describe(ch)
}

// Collect implements prom.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	c.opLatency.Collect(ch)
	c.batchItems.Collect(ch)
	c.batchFailed.Collect(ch)
	c.queryResults.Collect(ch)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInsert implements entitydb.MetricsCollector.
func (c *Collector) RecordInsert(encoding string, d time.Duration, err error) {
	c.opLatency.WithLabelValues("insert", encoding, status(err)).Observe(d.Seconds())
}

// RecordBatch implements entitydb.MetricsCollector.
func (c *Collector) RecordBatch(op string, count, failed int, d time.Duration) {
	st := "success"
	if failed > 0 {
		st = "partial"
	}
	c.opLatency.WithLabelValues("batch_"+op, "", st).Observe(d.Seconds())
	c.batchItems.WithLabelValues(op).Add(float64(count))
	c.batchFailed.WithLabelValues(op).Add(float64(failed))
}

// RecordQuery implements entitydb.MetricsCollector.
func (c *Collector) RecordQuery(mode string, _, results int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("query", mode, status(err)).Observe(d.Seconds())
	if err == nil {
		c.queryResults.WithLabelValues(mode).Observe(float64(results))
	}
}

// RecordDelete implements entitydb.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.opLatency.WithLabelValues("delete", "", status(err)).Observe(d.Seconds())
}

// RecordUpdate implements entitydb.MetricsCollector.
func (c *Collector) RecordUpdate(d time.Duration, err error) {
	c.opLatency.WithLabelValues("update", "", status(err)).Observe(d.Seconds())
}
