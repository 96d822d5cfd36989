package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeWithin = "within"
	OutcomeOver   = "over"
)

// AllocationMetrics tracks staffing writes and the over-allocation checks guarding them.
type AllocationMetrics struct {
	checks        *prometheus.CounterVec
	writes        *prometheus.CounterVec
	roster        *prometheus.GaugeVec
	overallocated *prometheus.GaugeVec
}

func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "assignment_allocation_checks_total",
		Help:      "Allocation ceiling checks run before assignment writes.",
	}, []string{"outcome", "policy"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "assignment_writes_total",
		Help:      "Persisted assignment writes by operation.",
	}, []string{"op"})
	roster := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "allocation_roster_people",
		Help:      "People on the staffing roster at the last scan.",
	}, []string{"window"})
	overallocated := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "allocation_overallocated_people",
		Help:      "People above the allocation ceiling at the last scan.",
	}, []string{"window"})
	reg.MustRegister(checks, writes, roster, overallocated)
	return &AllocationMetrics{
		checks:        checks,
		writes:        writes,
		roster:        roster,
		overallocated: overallocated,
	}
}

// ObserveCheck counts one ceiling check.
func (m *AllocationMetrics) ObserveCheck(overallocated bool, policy string) {
	if m == nil || m.checks == nil {
		return
	}
	outcome := OutcomeWithin
	if overallocated {
		outcome = OutcomeOver
	}
	m.checks.WithLabelValues(outcome, normalizeLabel(policy)).Inc()
}

// IncWrite counts one persisted write ("create", "update", "deactivate", "delete").
func (m *AllocationMetrics) IncWrite(op string) {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetScan publishes the roster size and over-allocated count for a scan window.
func (m *AllocationMetrics) SetScan(window string, rosterSize, overallocated int) {
	if m == nil || m.roster == nil {
		return
	}
	m.roster.WithLabelValues(normalizeLabel(window)).Set(float64(rosterSize))
	m.overallocated.WithLabelValues(normalizeLabel(window)).Set(float64(overallocated))
}
