package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resident directory.
// Tracks adds by status, lookup outcomes and operation durations.
type Metrics struct {
	ResidentsAdded  *prometheus.CounterVec
	AddFailures     prometheus.Counter
	StatusLookups   *prometheus.CounterVec
	AddDuration     prometheus.Histogram
	LookupDuration  prometheus.Histogram
	CountDuration   prometheus.Histogram
	EventsStreamed  prometheus.Counter
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
	ProjectedEvents prometheus.Counter
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ResidentsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "residents_added_total",
			Help: "Total number of resident records added, by residency status",
		}, []string{"residency_status"}),
		AddFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "residents_add_failures_total",
			Help: "Total number of adds rolled back by a backend or publisher failure",
		}),
		StatusLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "residents_status_lookups_total",
			Help: "Total number of residency status lookups, by outcome",
		}, []string{"outcome"}),
		AddDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "residents_add_duration_seconds",
			Help:    "Duration of AddNewPerson including the publish",
			Buckets: latencyBuckets,
		}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "residents_lookup_duration_seconds",
			Help:    "Duration of GetResidencyStatus",
			Buckets: latencyBuckets,
		}),
		CountDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "residents_count_duration_seconds",
			Help:    "Duration of CountResidents",
			Buckets: latencyBuckets,
		}),
		EventsStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "residents_events_streamed_total",
			Help: "Total number of PersonAdded events written to event stream clients",
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "residents_outbox_published_total",
			Help: "Total number of outbox entries relayed to Kafka",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "residents_outbox_failures_total",
			Help: "Total number of outbox relay attempts that failed",
		}),
		ProjectedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "residents_history_projected_total",
			Help: "Total number of PersonAdded events applied by the history projector",
		}),
	}
}

// IncrementAdded records a successful add.
func (m *Metrics) IncrementAdded(status string) {
	if m == nil {
		return
	}
	m.ResidentsAdded.WithLabelValues(status).Inc()
}

// IncrementAddFailure records an add that did not apply.
func (m *Metrics) IncrementAddFailure() {
	if m == nil {
		return
	}
	m.AddFailures.Inc()
}

// IncrementLookup records a status lookup outcome ("found" or "not_found").
func (m *Metrics) IncrementLookup(outcome string) {
	if m == nil {
		return
	}
	m.StatusLookups.WithLabelValues(outcome).Inc()
}

// ObserveAdd records the duration of an add.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAdd(start time.Time) {
	if m == nil {
		return
	}
	m.AddDuration.Observe(time.Since(start).Seconds())
}

// ObserveLookup records the duration of a status lookup.
func (m *Metrics) ObserveLookup(start time.Time) {
	if m == nil {
		return
	}
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// ObserveCount records the duration of a count.
func (m *Metrics) ObserveCount(start time.Time) {
	if m == nil {
		return
	}
	m.CountDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStreamed() {
	if m == nil {
		return
	}
	m.EventsStreamed.Inc()
}

func (m *Metrics) IncrementOutboxPublished() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}

func (m *Metrics) IncrementOutboxFailure() {
	if m == nil {
		return
	}
	m.OutboxFailures.Inc()
}

func (m *Metrics) IncrementProjected() {
	if m == nil {
		return
	}
	m.ProjectedEvents.Inc()
}
