package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "booking_created_total",
			Help:      "Count of bookings committed, by scheduling type.",
		},
		[]string{"scheduling_type"},
	)

	bookingCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "booking_canceled_total",
			Help:      "Count of bookings canceled via action links.",
		},
	)

	bookingRescheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "booking_rescheduled_total",
			Help:      "Count of bookings rescheduled via action links.",
		},
	)

	slotRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "slot_requests_total",
			Help:      "Count of slot computation requests served.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "booking_conflict_total",
			Help:      "Count of commit attempts that lost the slot race.",
		},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "webhook_delivery_total",
			Help:      "Count of webhook delivery attempts by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opencalendly",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCanceled, bookingRescheduled,
			slotRequests, bookingConflicts, webhookDeliveries, httpRequests,
		)
	})
}

func IncBookingCreated(schedulingType string) {
	bookingCreated.WithLabelValues(schedulingType).Inc()
}

func IncBookingCanceled() {
	bookingCanceled.Inc()
}

func IncBookingRescheduled() {
	bookingRescheduled.Inc()
}

func IncSlotRequests() {
	slotRequests.Inc()
}

func IncBookingConflicts() {
	bookingConflicts.Inc()
}

func IncWebhookDelivery(result string) {
	webhookDeliveries.WithLabelValues(result).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
