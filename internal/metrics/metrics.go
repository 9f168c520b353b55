// Package metrics holds the Prometheus collectors for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recording method is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	filesAnalyzed *prometheus.CounterVec
	bytesAnalyzed prometheus.Counter
	symbols       *prometheus.CounterVec
	faults        *prometheus.CounterVec
	fileErrors    *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New registers the collectors on a fresh registry so several instances can
// coexist in one process (tests, embedded servers).
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeoracle",
			Name:      "files_analyzed_total",
			Help:      "Files analyzed, by language and strategy.",
		}, []string{"language", "strategy"}),
		bytesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codeoracle",
			Name:      "bytes_analyzed_total",
			Help:      "Bytes of decoded content analyzed.",
		}),
		symbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeoracle",
			Name:      "symbols_extracted_total",
			Help:      "Functions, classes and imports extracted.",
		}, []string{"kind"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeoracle",
			Name:      "extraction_faults_total",
			Help:      "Strategy faults recovered during extraction.",
		}, []string{"strategy"}),
		fileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeoracle",
			Name:      "file_errors_total",
			Help:      "Files that could not be analyzed, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codeoracle",
			Name:      "analyze_duration_seconds",
			Help:      "Time spent analyzing a single file.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.filesAnalyzed,
		m.bytesAnalyzed,
		m.symbols,
		m.faults,
		m.fileErrors,
		m.duration,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveFile records one analyzed file.
func (m *Metrics) ObserveFile(language, strategy string, size, functions, classes, imports int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.filesAnalyzed.WithLabelValues(language, strategy).Inc()
	m.bytesAnalyzed.Add(float64(size))
	m.symbols.WithLabelValues("function").Add(float64(functions))
	m.symbols.WithLabelValues("class").Add(float64(classes))
	m.symbols.WithLabelValues("import").Add(float64(imports))
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFault(strategy string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(strategy).Inc()
}

// ObserveFileError counts a file skipped for reason (decode, too_large, read).
func (m *Metrics) ObserveFileError(reason string) {
	if m == nil {
		return
	}
	m.fileErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
