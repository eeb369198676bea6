package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rename outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Metrics tracks category renames, the one multi-step write in the service.
type Metrics struct {
	RenamesTotal       *prometheus.CounterVec
	RenameDuration     prometheus.Histogram
	AccountsReassigned prometheus.Counter
	CacheLookups       *prometheus.CounterVec
}

// New registers the category metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the category metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RenamesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_category_renames_total",
			Help: "Category rename attempts by outcome",
		}, []string{"outcome"}),
		RenameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounting_category_rename_duration_seconds",
			Help:    "Duration of category renames including the transaction commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AccountsReassigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounting_category_accounts_reassigned_total",
			Help: "Accounts moved to a new category key by committed renames",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_category_cache_lookups_total",
			Help: "Category cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// ObserveRename records a finished rename attempt.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRename(outcome string, reassigned int, start time.Time) {
	m.RenamesTotal.WithLabelValues(outcome).Inc()
	m.RenameDuration.Observe(time.Since(start).Seconds())
	if outcome == OutcomeSuccess && reassigned > 0 {
		m.AccountsReassigned.Add(float64(reassigned))
	}
}

// IncrementCacheLookup records a cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}
