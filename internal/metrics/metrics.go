package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medremind"

// Transition sources
const (
	SourceUser    = "user"
	SourceGrace   = "grace"
	SourceSweep   = "sweep"
	SourcePlanner = "planner"
)

type Metrics struct {
	registry *prometheus.Registry
	start    time.Time

	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	alarmsFired      prometheus.Counter
	alarmFailures    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	pending          prometheus.Gauge
	notified         prometheus.Gauge
	remindersPlanned prometheus.Counter
	supply           *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New builds a Metrics with its own registry so tests never collide
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		start:    time.Now(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Poll ticks executed",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_tick_duration_seconds",
			Help:      "Time spent in one poll tick",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		alarmsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_fired_total",
			Help:      "Alarms handed to the presenter",
		}),
		alarmFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_failures_total",
			Help:      "Alarms that could not be presented",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_transitions_total",
			Help:      "Reminder status transitions",
		}, []string{"status", "source"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminders_pending",
			Help:      "Reminders currently pending",
		}),
		notified: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notified_keys",
			Help:      "Entries in the alarm dedup set",
		}),
		remindersPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_planned_total",
			Help:      "Reminders materialised from medicine schedules",
		}),
		supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "medicine_supply",
			Help:      "Remaining supply per medicine",
		}, []string{"medicine"}),
	}

	reg.MustRegister(
		m.ticks,
		m.tickDuration,
		m.alarmsFired,
		m.alarmFailures,
		m.transitions,
		m.pending,
		m.notified,
		m.remindersPlanned,
		m.supply,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordTick(d time.Duration) {
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordAlarm() {
	m.alarmsFired.Inc()
}

func (m *Metrics) RecordAlarmFailure(reason string) {
	m.alarmFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTransition(status, source string) {
	m.transitions.WithLabelValues(status, source).Inc()
}

func (m *Metrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

func (m *Metrics) SetNotified(n int) {
	m.notified.Set(float64(n))
}

func (m *Metrics) RecordPlanned(n int) {
	m.remindersPlanned.Add(float64(n))
}

func (m *Metrics) SetSupply(medicine string, supply int) {
	m.supply.WithLabelValues(medicine).Set(float64(supply))
}

// Uptime returns the time since New
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.start)
}

// Registry exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
