// README: Prometheus counters for the booking engine, served on the metrics listener.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by initial status.",
		},
		[]string{"status"},
	)

	bookingReplayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "booking_replayed_total",
			Help:      "Count of create requests answered from an earlier idempotency key.",
		},
	)

	bookingConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "booking_conflict_total",
			Help:      "Count of create requests rejected by the availability check.",
		},
	)

	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"to"},
	)

	paymentCompensation = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "payment_compensation_total",
			Help:      "Count of refunds issued after a failed booking creation, by outcome.",
		},
		[]string{"outcome"},
	)

	quoteTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental",
			Name:      "price_quote_total",
			Help:      "Count of price quotes computed.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingReplayed, bookingConflict,
			bookingTransition, paymentCompensation, quoteTotal)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingReplayed() {
	bookingReplayed.Inc()
}

func IncBookingConflict() {
	bookingConflict.Inc()
}

func IncBookingTransition(to string) {
	bookingTransition.WithLabelValues(to).Inc()
}

func IncCompensation(outcome string) {
	paymentCompensation.WithLabelValues(outcome).Inc()
}

func IncQuote() {
	quoteTotal.Inc()
}
