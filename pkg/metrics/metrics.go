// Package metrics implements the conversion and cache hooks with Prometheus
// collectors.
//
// Collectors live on a private registry rather than the global default, so
// several Collectors can coexist in tests and a batch run exports only its own
// series. A CLI run is short-lived; instead of serving /metrics the registry is
// written in the node-exporter textfile format once the run finishes.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/csrconv/pkg/observability"
)

// Collector records conversion metrics.
type Collector struct {
	Registry *prometheus.Registry

	JobsTotal     *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	PassDuration  *prometheus.HistogramVec
	EdgesScanned  *prometheus.CounterVec
	WindowsTotal  *prometheus.CounterVec
	GraphNodes    *prometheus.GaugeVec
	GraphEdges    *prometheus.GaugeVec
	CacheRequests *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),

		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csrconv_jobs_total",
				Help: "Conversion jobs finished, by mode and status",
			},
			[]string{"mode", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "csrconv_job_duration_seconds",
				Help: "Wall time of a conversion job",
				// From small ego networks to billion-edge community graphs.
				Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 900, 3600, 4 * 3600},
			},
			[]string{"mode"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csrconv_pass_duration_seconds",
				Help:    "Wall time of one full scan of a source",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
			},
			[]string{"side", "kind"},
		),
		EdgesScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csrconv_edges_scanned_total",
				Help: "Raw edges read across all passes",
			},
			[]string{"dataset"},
		),
		WindowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csrconv_windows_total",
				Help: "Window re-scans performed by the chunked converter",
			},
			[]string{"dataset", "side"},
		),
		GraphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "csrconv_graph_nodes",
				Help: "Node count of the last successful conversion",
			},
			[]string{"dataset"},
		),
		GraphEdges: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "csrconv_graph_edges",
				Help: "Forward record count of the last successful conversion",
			},
			[]string{"dataset"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csrconv_cache_requests_total",
				Help: "Conversion cache lookups and writes, by result",
			},
			[]string{"key_type", "result"},
		),
	}
	c.Registry.MustRegister(
		c.JobsTotal, c.JobDuration, c.PassDuration, c.EdgesScanned,
		c.WindowsTotal, c.GraphNodes, c.GraphEdges, c.CacheRequests,
	)
	return c
}

// Register installs c as the process-wide conversion and cache hooks.
func (c *Collector) Register() {
	observability.SetConvertHooks(c)
	observability.SetCacheHooks(c)
}

// WriteTextfile writes every collected series to path in the text exposition
// format, for the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}

func (c *Collector) OnJobStart(context.Context, string, string) {}

func (c *Collector) OnJobComplete(_ context.Context, dataset, mode string, nodes, edges int64, d time.Duration, err error) {
	c.JobsTotal.WithLabelValues(mode, status(err)).Inc()
	c.JobDuration.WithLabelValues(mode).Observe(d.Seconds())
	if err == nil {
		c.GraphNodes.WithLabelValues(dataset).Set(float64(nodes))
		c.GraphEdges.WithLabelValues(dataset).Set(float64(edges))
	}
}

func (c *Collector) OnPassStart(context.Context, string, string, int) {}

func (c *Collector) OnPassComplete(_ context.Context, dataset, side string, pass int, scanned int64, d time.Duration, _ error) {
	c.PassDuration.WithLabelValues(side, passKind(pass)).Observe(d.Seconds())
	c.EdgesScanned.WithLabelValues(dataset).Add(float64(scanned))
	if pass >= 2 {
		c.WindowsTotal.WithLabelValues(dataset, side).Inc()
	}
}

func (c *Collector) OnCacheHit(_ context.Context, keyType string) {
	c.CacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (c *Collector) OnCacheMiss(_ context.Context, keyType string) {
	c.CacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (c *Collector) OnCacheSet(_ context.Context, keyType string, _ int) {
	c.CacheRequests.WithLabelValues(keyType, "set").Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func passKind(pass int) string {
	switch pass {
	case 0:
		return "index"
	case 1:
		return "degree"
	default:
		return "window"
	}
}

var (
	_ observability.ConvertHooks = (*Collector)(nil)
	_ observability.CacheHooks   = (*Collector)(nil)
)
