// Package metrics exposes Prometheus metrics for the governance engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/warden/pkg/config"
)

// Collector owns all Prometheus metrics for the engine. Metric values are
// updated once per tick from the tick result, so scrapes between ticks see
// the last committed view of the system.
type Collector struct {
	cfg      config.MetricsConfig
	registry *prometheus.Registry

	ticksTotal          *prometheus.CounterVec
	policyLevel         prometheus.Gauge
	trustLockEngaged    prometheus.Gauge
	manualUnlocksToday  prometheus.Gauge
	escalationsOpen     prometheus.Gauge
	escalationsStuck    prometheus.Gauge
	rateWindowCount     prometheus.Gauge
	safetyBrakeEngaged  prometheus.Gauge
	signalWarningsTotal prometheus.Counter
	persistFailures     prometheus.Counter
}

// NewCollector creates and registers all engine metrics. If registry is
// nil, a fresh registry is created.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "warden"
	}

	c := &Collector{
		cfg:      cfg,
		registry: registry,
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ticks_total",
			Help:      "Engine ticks by mode and outcome.",
		}, []string{"mode", "outcome"}),
		policyLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "policy_level",
			Help:      "Current policy level (0=GREEN, 1=YELLOW, 2=RED).",
		}),
		trustLockEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "trust_lock_engaged",
			Help:      "Whether the trust lock is engaged (1) or not (0).",
		}),
		manualUnlocksToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "manual_unlocks_today",
			Help:      "Manual unlocks consumed on the current UTC date.",
		}),
		escalationsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "escalations_open",
			Help:      "Open (non-terminal) escalation records.",
		}),
		escalationsStuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "escalations_stuck",
			Help:      "Escalation records held past the stuck threshold.",
		}),
		rateWindowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "automated_actions_in_window",
			Help:      "Automated actions counted in the trailing rate-limit window.",
		}),
		safetyBrakeEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "safety_brake_engaged",
			Help:      "Whether the safety brake is engaged (1) or not (0).",
		}),
		signalWarningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "signal_warnings_total",
			Help:      "Degraded signal sources observed across all ticks.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "persistence_failures_total",
			Help:      "Fatal persistence failures (diagnostic bundle created).",
		}),
	}

	registry.MustRegister(
		c.ticksTotal,
		c.policyLevel,
		c.trustLockEngaged,
		c.manualUnlocksToday,
		c.escalationsOpen,
		c.escalationsStuck,
		c.rateWindowCount,
		c.safetyBrakeEngaged,
		c.signalWarningsTotal,
		c.persistFailures,
	)
	return c
}

// TickObservation is the per-tick metric update.
type TickObservation struct {
	Mode               string
	Outcome            string
	LevelSeverity      int
	LockEngaged        bool
	ManualUnlocksToday int
	OpenEscalations    int
	StuckEscalations   int
	WindowCount        int64
	BrakeEngaged       bool
	SignalWarnings     int
	PersistFailed      bool
}

// ObserveTick records one completed tick.
func (c *Collector) ObserveTick(obs TickObservation) {
	c.ticksTotal.WithLabelValues(obs.Mode, obs.Outcome).Inc()
	c.policyLevel.Set(float64(obs.LevelSeverity))
	c.trustLockEngaged.Set(boolGauge(obs.LockEngaged))
	c.manualUnlocksToday.Set(float64(obs.ManualUnlocksToday))
	c.escalationsOpen.Set(float64(obs.OpenEscalations))
	c.escalationsStuck.Set(float64(obs.StuckEscalations))
	c.rateWindowCount.Set(float64(obs.WindowCount))
	c.safetyBrakeEngaged.Set(boolGauge(obs.BrakeEngaged))
	c.signalWarningsTotal.Add(float64(obs.SignalWarnings))
	if obs.PersistFailed {
		c.persistFailures.Inc()
	}
}

// Handler returns the HTTP handler serving /metrics for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
