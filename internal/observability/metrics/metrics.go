package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts cart and booking submission outcomes.
type BookingMetrics struct {
	submissions   *prometheus.CounterVec
	bookingsTotal prometheus.Counter
	promoTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "booking",
			Name:      "records_created_total",
			Help:      "Booking records written to the store",
		}),
		promoTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "cart",
			Name:      "promo_applications_total",
			Help:      "Promo code applications by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissions, m.bookingsTotal, m.promoTotal)
	return m
}

// ObserveSubmission records one submission; created is the number of records written.
func (m *BookingMetrics) ObserveSubmission(outcome string, created int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	if created > 0 {
		m.bookingsTotal.Add(float64(created))
	}
}

func (m *BookingMetrics) ObservePromo(result string) {
	if m == nil {
		return
	}
	m.promoTotal.WithLabelValues(result).Inc()
}

// ReminderMetrics tracks the generation and dispatch passes.
type ReminderMetrics struct {
	generated    *prometheus.CounterVec
	dispatched   *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "reminders",
			Name:      "generated_total",
			Help:      "Reminder events created by the generation pass",
		}, []string{"kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder events closed by the dispatch pass",
		}, []string{"kind", "outcome"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bloodlab",
			Subsystem: "reminders",
			Name:      "pass_duration_seconds",
			Help:      "Duration of generation and dispatch passes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pass"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.generated, m.dispatched, m.passDuration)
	return m
}

func (m *ReminderMetrics) ObserveGenerated(kind string) {
	if m == nil {
		return
	}
	m.generated.WithLabelValues(kind).Inc()
}

func (m *ReminderMetrics) ObserveDispatched(kind, outcome string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(kind, outcome).Inc()
}

func (m *ReminderMetrics) ObservePass(pass string, seconds float64) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(pass).Observe(seconds)
}

// NotifyMetrics covers outbound notification sends.
type NotifyMetrics struct {
	sends   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewNotifyMetrics(reg prometheus.Registerer) *NotifyMetrics {
	m := &NotifyMetrics{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlab",
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Outbound notifications by channel and status",
		}, []string{"channel", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bloodlab",
			Subsystem: "notify",
			Name:      "send_latency_seconds",
			Help:      "Latency of provider send calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sends, m.latency)
	return m
}

func (m *NotifyMetrics) ObserveSend(channel, status string, seconds float64) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(channel, status).Inc()
	m.latency.WithLabelValues(channel).Observe(seconds)
}
