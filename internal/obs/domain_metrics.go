package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingItemsTotal counts priced items by outcome (ok, failed).
	PricingItemsTotal *prometheus.CounterVec
	// PricingWarningsTotal counts soft mismatches recorded on priced items.
	PricingWarningsTotal *prometheus.CounterVec
	// PricingCartDuration records cart calculation latency in milliseconds.
	PricingCartDuration prometheus.Histogram
	// DraftOperationsTotal counts draft store operations by outcome.
	DraftOperationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises the domain collectors on first use and
// registers them on reg. The namespace of the first call wins.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	domainOnce.Do(func() {
		PricingItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_items_total",
			Help:      "Count of item pricing outcomes.",
		}, []string{"result"})
		PricingWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_warnings_total",
			Help:      "Count of pricing warnings by kind.",
		}, []string{"kind"})
		PricingCartDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_cart_duration_ms",
			Help:      "Latency of cart calculations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		})
		DraftOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_operations_total",
			Help:      "Count of draft session store operations.",
		}, []string{"op", "result"})
	})

	mustRegisterCollector(reg, PricingItemsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			PricingItemsTotal = v
		}
	})
	mustRegisterCollector(reg, PricingWarningsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			PricingWarningsTotal = v
		}
	})
	mustRegisterCollector(reg, PricingCartDuration, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Histogram); ok {
			PricingCartDuration = v
		}
	})
	mustRegisterCollector(reg, DraftOperationsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			DraftOperationsTotal = v
		}
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
