package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockwatch",
			Subsystem: "bot",
			Name:      "cycles_total",
			Help:      "The total number of completed detection cycles",
		},
		[]string{"category", "outcome"},
	)
	ScrapeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockwatch",
			Subsystem: "bot",
			Name:      "scrape_failures_total",
			Help:      "The total number of failed category scrapes",
		},
		[]string{"category"},
	)
	AlertsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockwatch",
			Subsystem: "bot",
			Name:      "alerts_sent_total",
			Help:      "The total number of change notifications sent",
		},
		[]string{"kind"},
	)
	ProductsTracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stockwatch",
			Subsystem: "bot",
			Name:      "products_tracked",
			Help:      "The number of products in the last persisted category state",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(ScrapeFailuresTotal)
	prometheus.MustRegister(AlertsSentTotal)
	prometheus.MustRegister(ProductsTracked)
}
