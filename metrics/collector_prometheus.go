package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Collector            = (*PrometheusCollector)(nil)
	_ prometheus.Collector = (*PrometheusCollector)(nil)
)

// PrometheusCollector implements Collector on top of Prometheus metrics. It
// also implements prometheus.Collector, so it can be handed straight to a
// prometheus.Registerer.
//
// Counters are plain atomics read at scrape time rather than live
// prometheus.Counter values. Events fire on the registry's hot path and a
// single atomic add is cheaper than the counter's internal bookkeeping.
type PrometheusCollector struct {
	labels prometheus.Labels

	created map[Kind]*int64
	removed map[Kind]*int64
	resets  map[Kind]*int64

	structures  int64
	memoryBytes int64

	createdDesc    *prometheus.Desc
	removedDesc    *prometheus.Desc
	resetDesc      *prometheus.Desc
	structuresDesc *prometheus.Desc
	memoryDesc     *prometheus.Desc
}

// NewPrometheusCollector creates a collector whose metrics carry the given
// registry name as a constant label. Per-kind counters are allocated up
// front, so event methods never write to the maps after construction.
func NewPrometheusCollector(name string) *PrometheusCollector {
	labels := prometheus.Labels{"registry": name}

	c := &PrometheusCollector{
		labels:  labels,
		created: make(map[Kind]*int64, len(Kinds)),
		removed: make(map[Kind]*int64, len(Kinds)),
		resets:  make(map[Kind]*int64, len(Kinds)),
	}
	for _, kind := range Kinds {
		c.created[kind] = new(int64)
		c.removed[kind] = new(int64)
		c.resets[kind] = new(int64)
	}

	c.createdDesc = prometheus.NewDesc(
		"sketches_created_total",
		"Total number of structures created, by kind",
		[]string{"kind"}, labels,
	)
	c.removedDesc = prometheus.NewDesc(
		"sketches_removed_total",
		"Total number of structures removed, by kind",
		[]string{"kind"}, labels,
	)
	c.resetDesc = prometheus.NewDesc(
		"sketches_reset_total",
		"Total number of structure resets, by kind",
		[]string{"kind"}, labels,
	)
	c.structuresDesc = prometheus.NewDesc(
		"sketches_structures",
		"Current number of registered structures",
		nil, labels,
	)
	c.memoryDesc = prometheus.NewDesc(
		"sketches_memory_bytes",
		"Estimated heap memory held by registered structures",
		nil, labels,
	)

	return c
}

// IncCreated increments the creation counter for the kind. Unknown kinds are
// dropped so the pre-allocated maps stay write-free.
func (c *PrometheusCollector) IncCreated(kind Kind) {
	if counter, ok := c.created[kind]; ok {
		atomic.AddInt64(counter, 1)
	}
}

// IncRemoved increments the removal counter for the kind.
func (c *PrometheusCollector) IncRemoved(kind Kind) {
	if counter, ok := c.removed[kind]; ok {
		atomic.AddInt64(counter, 1)
	}
}

// IncReset increments the reset counter for the kind.
func (c *PrometheusCollector) IncReset(kind Kind) {
	if counter, ok := c.resets[kind]; ok {
		atomic.AddInt64(counter, 1)
	}
}

// SetStructures updates the registered-structure gauge.
func (c *PrometheusCollector) SetStructures(n int64) {
	atomic.StoreInt64(&c.structures, n)
}

// SetMemoryBytes updates the memory gauge.
func (c *PrometheusCollector) SetMemoryBytes(bytes int64) {
	atomic.StoreInt64(&c.memoryBytes, bytes)
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.createdDesc
	ch <- c.removedDesc
	ch <- c.resetDesc
	ch <- c.structuresDesc
	ch <- c.memoryDesc
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, kind := range Kinds {
		ch <- prometheus.MustNewConstMetric(
			c.createdDesc,
			prometheus.CounterValue,
			float64(atomic.LoadInt64(c.created[kind])),
			string(kind),
		)
		ch <- prometheus.MustNewConstMetric(
			c.removedDesc,
			prometheus.CounterValue,
			float64(atomic.LoadInt64(c.removed[kind])),
			string(kind),
		)
		ch <- prometheus.MustNewConstMetric(
			c.resetDesc,
			prometheus.CounterValue,
			float64(atomic.LoadInt64(c.resets[kind])),
			string(kind),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.structuresDesc,
		prometheus.GaugeValue,
		float64(atomic.LoadInt64(&c.structures)),
	)
	ch <- prometheus.MustNewConstMetric(
		c.memoryDesc,
		prometheus.GaugeValue,
		float64(atomic.LoadInt64(&c.memoryBytes)),
	)
}
