package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "plugsmith"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg              *prom.Registry
	opDuration       *prom.HistogramVec
	opResults        *prom.CounterVec
	itemsSkipped     *prom.CounterVec
	retries          prom.Counter
	retriesExhausted prom.Counter
	installed        prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.opDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of plugin add/remove and manifest operations",
		Buckets:   prom.DefBuckets,
	}, []string{"operation"})
	pr.opResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "operation_results_total",
		Help:      "Operation result counts by outcome",
	}, []string{"operation", "result"})
	pr.itemsSkipped = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "items_skipped_total",
		Help:      "Install items skipped because no installer handles their type",
	}, []string{"kind"})
	pr.retries = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "registry_write_retries_total",
		Help:      "Registry write retries after a failed save",
	})
	pr.retriesExhausted = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "registry_write_retry_exhausted_total",
		Help:      "Registry writes that failed after all retries",
	})
	pr.installed = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "installed_plugins",
		Help:      "Plugins recorded in the module registry after the last operation",
	})
	reg.MustRegister(pr.opDuration, pr.opResults, pr.itemsSkipped, pr.retries, pr.retriesExhausted, pr.installed)
	return pr
}

// Registry exposes the underlying registry for gathering.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveOperationDuration(op Operation, d time.Duration) {
	if p == nil || p.opDuration == nil {
		return
	}
	p.opDuration.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncOperationResult(op Operation, result ResultLabel) {
	if p == nil || p.opResults == nil {
		return
	}
	p.opResults.WithLabelValues(string(op), string(result)).Inc()
}

func (p *PrometheusRecorder) IncItemSkipped(kind string) {
	if p == nil || p.itemsSkipped == nil {
		return
	}
	p.itemsSkipped.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncRegistryRetry() {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.Inc()
}

func (p *PrometheusRecorder) IncRegistryRetryExhausted() {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.Inc()
}

func (p *PrometheusRecorder) SetInstalledPlugins(n int) {
	if p == nil || p.installed == nil {
		return
	}
	p.installed.Set(float64(n))
}

// WriteTextfile dumps the recorder's metrics in the node-exporter textfile
// format. The write is atomic.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
