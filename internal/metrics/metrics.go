// Package metrics records pipeline counters and stage timings in
// Prometheus form. A CLI run has no scrape endpoint, so the registry can
// be dumped to a node-exporter textfile once the command finishes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pbench"

// Pipeline stages
const (
	StageParse     = "parse"
	StageNormalize = "normalize"
	StageScore     = "score"
	StageDatapoint = "datapoint"
	StageArchive   = "archive"
	StageSubmit    = "submit"
)

// Archive sources
const (
	SourceRemote = "remote"
	SourceCache  = "cache"
	SourceEmpty  = "empty"
)

// Metrics holds the collectors of one registry. Methods on a nil
// *Metrics do nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	StageDuration *prometheus.HistogramVec
	RunsTotal     *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
	ArchiveFetch  *prometheus.CounterVec
	Features      *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the collectors registered with the global registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors with reg
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of benchmark pipeline stages",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Benchmark runs by module, tool and outcome",
		}, []string{"module", "tool", "status"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Pull request submissions by outcome",
		}, []string{"module", "result"}),
		ArchiveFetch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_loads_total",
			Help:      "Public archive loads by source",
		}, []string{"module", "source"}),
		Features: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features",
			Help:      "Precursor features in the last intermediate table",
		}, []string{"module", "tool"}),
	}
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Since records the time elapsed since start for stage
func (m *Metrics) Since(stage string, start time.Time) {
	m.ObserveStage(stage, time.Since(start))
}

// RunFinished counts a run ending in status
func (m *Metrics) RunFinished(module, tool, status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(module, tool, status).Inc()
}

// Submitted counts a submission attempt
func (m *Metrics) Submitted(module string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Submissions.WithLabelValues(module, result).Inc()
}

// ArchiveLoaded counts where the public archive came from
func (m *Metrics) ArchiveLoaded(module, source string) {
	if m == nil {
		return
	}
	m.ArchiveFetch.WithLabelValues(module, source).Inc()
}

// SetFeatures records the size of the latest intermediate table
func (m *Metrics) SetFeatures(module, tool string, n int) {
	if m == nil {
		return
	}
	m.Features.WithLabelValues(module, tool).Set(float64(n))
}

// WriteTextfile dumps all gathered metrics to path in the text
// exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || m.gatherer == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}
