package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	inboundTotal  *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	turnLatency   prometheus.Histogram
	intentsTotal  *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
	cancelsTotal  *prometheus.CounterVec
	outboundTotal *prometheus.CounterVec
	remindersSent *prometheus.CounterVec
	slotsCreated  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "whatsapp",
			Name:      "inbound_webhook_total",
			Help:      "Inbound WhatsApp webhooks by outcome",
		}, []string{"outcome"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed conversation turns by resulting state",
		}, []string{"state"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vaidya",
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent on one conversation turn",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "intent",
			Name:      "extracted_total",
			Help:      "Extracted intents by category",
		}, []string{"intent"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "booking",
			Name:      "book_total",
			Help:      "Booking attempts by result code",
		}, []string{"result"}),
		cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "booking",
			Name:      "cancel_total",
			Help:      "Cancellation attempts by result code",
		}, []string{"result"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends by status",
		}, []string{"status"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "maintenance",
			Name:      "reminders_sent_total",
			Help:      "Appointment reminders sent by kind",
		}, []string{"kind"}),
		slotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaidya",
			Subsystem: "maintenance",
			Name:      "slots_created_total",
			Help:      "Appointment slots created by regeneration",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal, m.turnsTotal, m.turnLatency, m.intentsTotal,
		m.bookingsTotal, m.cancelsTotal, m.outboundTotal, m.remindersSent, m.slotsCreated,
	)
	return m
}

func (m *Metrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTurn(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCancel(result string) {
	if m == nil {
		return
	}
	m.cancelsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveReminder(kind string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddSlotsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsCreated.Add(float64(n))
}
