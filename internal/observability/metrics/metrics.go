package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking and
// milestone-sync flows.
type SchedulingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	conflictsTotal prometheus.Counter
	bookingLatency prometheus.Histogram
	syncOpsTotal   *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"status", "outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Total bookings rejected for slot conflicts",
		}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of atomic booking transactions",
			Buckets:   prometheus.DefBuckets,
		}),
		syncOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "milestone_sync_ops_total",
			Help:      "Milestone synchronizer operations by kind",
		}, []string{"op", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.bookingLatency, m.syncOpsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(status, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveBookingLatency(seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSyncOp(op, outcome string) {
	if m == nil {
		return
	}
	m.syncOpsTotal.WithLabelValues(op, outcome).Inc()
}

// SimulationMetrics instruments the AI image simulation pipeline.
type SimulationMetrics struct {
	runsTotal  *prometheus.CounterVec
	runLatency prometheus.Histogram
}

func NewSimulationMetrics(reg prometheus.Registerer) *SimulationMetrics {
	m := &SimulationMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Image simulation runs by outcome",
		}, []string{"outcome"}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "simulation",
			Name:      "run_latency_seconds",
			Help:      "End-to-end latency of an image simulation run",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.runLatency)
	return m
}

func (m *SimulationMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runLatency.Observe(seconds)
}
