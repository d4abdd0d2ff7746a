// ABOUTME: Prometheus metrics for sound output sessions and pools
// ABOUTME: Implements sound.Observer and exports provider pool stats on scrape
package metrics

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/sound"
	"github.com/prometheus/client_golang/prometheus"
)

// Drain outcomes used as the status label
const (
	DrainOK        = "ok"
	DrainCancelled = "cancelled"
	DrainError     = "error"
)

// Metrics contains Prometheus metrics for sound sessions
type Metrics struct {
	registry *prometheus.Registry

	outputsStarted      *prometheus.CounterVec
	backpressureWaits   prometheus.Counter
	backpressureSeconds prometheus.Counter
	drains              *prometheus.CounterVec

	// pool stats are read from the provider on every scrape
	processesCreated *prometheus.Desc
	processesIdle    *prometheus.Desc
	workersCreated   *prometheus.Desc
	workersIdle      *prometheus.Desc
	draining         *prometheus.Desc

	mu    sync.RWMutex
	stats func() sound.Stats

	collectors []prometheus.Collector
}

var _ sound.Observer = (*Metrics)(nil)

// New creates and registers sound metrics
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.outputsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sound_outputs_started_total",
			Help: "Total number of output sessions started",
		},
		[]string{"frequency"},
	)

	m.backpressureWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sound_backpressure_waits_total",
			Help: "Total number of Add calls delayed by backpressure",
		},
	)

	m.backpressureSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sound_backpressure_seconds_total",
			Help: "Total time Add calls were delayed by backpressure",
		},
	)

	m.drains = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sound_drains_total",
			Help: "Total number of finished drains by outcome",
		},
		[]string{"status"},
	)

	m.processesCreated = prometheus.NewDesc(
		"sound_pool_processes_created",
		"Render processes created by the pool",
		nil, nil,
	)
	m.processesIdle = prometheus.NewDesc(
		"sound_pool_processes_idle",
		"Render processes idle in the pool",
		nil, nil,
	)
	m.workersCreated = prometheus.NewDesc(
		"sound_pool_workers_created",
		"Workers created by the pool",
		nil, nil,
	)
	m.workersIdle = prometheus.NewDesc(
		"sound_pool_workers_idle",
		"Workers idle in the pool",
		nil, nil,
	)
	m.draining = prometheus.NewDesc(
		"sound_outputs_draining",
		"Stopped outputs still playing out queued audio",
		nil, nil,
	)

	m.collectors = []prometheus.Collector{
		m.outputsStarted,
		m.backpressureWaits,
		m.backpressureSeconds,
		m.drains,
	}
}

// WatchProvider makes scrapes report the pool stats of p
func (m *Metrics) WatchProvider(p *sound.Provider) {
	m.watch(p.Stats)
}

func (m *Metrics) watch(stats func() sound.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
	ch <- m.processesCreated
	ch <- m.processesIdle
	ch <- m.workersCreated
	ch <- m.workersIdle
	ch <- m.draining
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}

	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()
	if stats == nil {
		return
	}

	s := stats()
	ch <- prometheus.MustNewConstMetric(m.processesCreated, prometheus.GaugeValue, float64(s.Processes.Created))
	ch <- prometheus.MustNewConstMetric(m.processesIdle, prometheus.GaugeValue, float64(s.Processes.Idle))
	ch <- prometheus.MustNewConstMetric(m.workersCreated, prometheus.GaugeValue, float64(s.Workers.Created))
	ch <- prometheus.MustNewConstMetric(m.workersIdle, prometheus.GaugeValue, float64(s.Workers.Idle))
	ch <- prometheus.MustNewConstMetric(m.draining, prometheus.GaugeValue, float64(s.Draining))
}

// OutputStarted counts a session start
func (m *Metrics) OutputStarted(id string, freq int) {
	m.outputsStarted.WithLabelValues(strconv.Itoa(freq)).Inc()
}

// Backpressure counts a delayed Add
func (m *Metrics) Backpressure(id string, delay time.Duration) {
	m.backpressureWaits.Inc()
	m.backpressureSeconds.Add(delay.Seconds())
}

// DrainFinished counts a drain by outcome
func (m *Metrics) DrainFinished(id string, err error) {
	m.drains.WithLabelValues(drainStatus(err)).Inc()
}

func drainStatus(err error) string {
	switch {
	case err == nil:
		return DrainOK
	case errors.Is(err, context.Canceled):
		return DrainCancelled
	default:
		return DrainError
	}
}
