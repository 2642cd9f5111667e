package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for the trajectory pipeline
// and implements the core package's PipelineMetrics interface, so the
// sampler and refresh service can drive gauges and counters directly.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	RefreshCycles   *prometheus.CounterVec
	RefreshDuration prometheus.Histogram

	PublishedObjects prometheus.Gauge
	CatalogSize      prometheus.Gauge
	Staleness        prometheus.Gauge

	SkippedEpochs  prometheus.Counter
	OmittedObjects prometheus.Counter
}

// NewPipelineCollector registers pipeline Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_refresh_cycles_total",
		Help: "Total number of refresh cycles, labeled by outcome (published, empty, upstream_unavailable, timeout, error, superseded).",
	}, []string{"outcome"})
	cycles, err := registerCounterVec(reg, cycles, "tracker_refresh_cycles_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_refresh_duration_seconds",
		Help:    "Wall-clock duration of one refresh cycle in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "tracker_refresh_duration_seconds")
	if err != nil {
		return nil, err
	}

	published, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_published_objects",
		Help: "Number of objects in the currently published trajectory set.",
	}), "tracker_published_objects")
	if err != nil {
		return nil, err
	}
	catalog, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_catalog_elements",
		Help: "Number of element sets in the current catalog.",
	}), "tracker_catalog_elements")
	if err != nil {
		return nil, err
	}
	staleness, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_stale",
		Help: "1 when the most recent refresh cycle failed and readers are on old data, else 0.",
	}), "tracker_stale")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_skipped_epochs_total",
		Help: "Total number of sample epochs skipped due to propagation or conversion failures.",
	}), "tracker_skipped_epochs_total")
	if err != nil {
		return nil, err
	}
	omitted, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_omitted_objects_total",
		Help: "Total number of objects omitted from a trajectory set because every epoch failed.",
	}), "tracker_omitted_objects_total")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:         gatherer,
		RefreshCycles:    cycles,
		RefreshDuration:  duration,
		PublishedObjects: published,
		CatalogSize:      catalog,
		Staleness:        staleness,
		SkippedEpochs:    skipped,
		OmittedObjects:   omitted,
	}, nil
}

// EpochSkipped counts one skipped sample epoch.
func (c *PipelineCollector) EpochSkipped(object string) {
	if c == nil || c.SkippedEpochs == nil {
		return
	}
	c.SkippedEpochs.Inc()
}

// ObjectOmitted counts one object dropped from a build.
func (c *PipelineCollector) ObjectOmitted(object string) {
	if c == nil || c.OmittedObjects == nil {
		return
	}
	c.OmittedObjects.Inc()
}

// CycleCompleted records one finished refresh cycle.
func (c *PipelineCollector) CycleCompleted(outcome string, d time.Duration, objects int) {
	if c == nil {
		return
	}
	if c.RefreshCycles != nil {
		c.RefreshCycles.WithLabelValues(outcome).Inc()
	}
	if c.RefreshDuration != nil {
		c.RefreshDuration.Observe(d.Seconds())
	}
	if outcome == "published" && c.PublishedObjects != nil {
		c.PublishedObjects.Set(float64(objects))
	}
}

// SetStale publishes the staleness indicator.
func (c *PipelineCollector) SetStale(stale bool) {
	if c == nil || c.Staleness == nil {
		return
	}
	if stale {
		c.Staleness.Set(1)
	} else {
		c.Staleness.Set(0)
	}
}

// SetCatalogSize publishes the current catalog element count; wired to
// store events from main.
func (c *PipelineCollector) SetCatalogSize(n int) {
	if c == nil || c.CatalogSize == nil {
		return
	}
	c.CatalogSize.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
