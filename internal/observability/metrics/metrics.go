package metrics

import "github.com/prometheus/client_golang/prometheus"

// StudioMetrics exposes counters/histograms for the appointment lifecycle,
// reminder dispatch and external gateway calls.
type StudioMetrics struct {
	appointmentsTotal *prometheus.CounterVec
	remindersTotal    *prometheus.CounterVec
	gatewayTotal      *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
}

func NewStudioMetrics(reg prometheus.Registerer) *StudioMetrics {
	m := &StudioMetrics{
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapstudio",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapstudio",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminders settled by the sweep, by final status",
		}, []string{"status"}),
		gatewayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapstudio",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Calendar and email gateway calls by outcome",
		}, []string{"gateway", "outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snapstudio",
			Subsystem: "reminders",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full reminder sweep",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appointmentsTotal, m.remindersTotal, m.gatewayTotal, m.sweepDuration)
	return m
}

// ObserveAppointment counts one create/update/cancel/delete call.
func (m *StudioMetrics) ObserveAppointment(operation string, err error) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *StudioMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(status).Inc()
}

// ObserveGateway counts a calendar or email call; gateway is e.g.
// "calendar.create" or "email.reminder".
func (m *StudioMetrics) ObserveGateway(gateway string, err error) {
	if m == nil {
		return
	}
	m.gatewayTotal.WithLabelValues(gateway, outcome(err)).Inc()
}

func (m *StudioMetrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
