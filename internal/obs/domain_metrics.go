package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CatalogFetchTotal counts catalog loads by the source that answered.
	CatalogFetchTotal *prometheus.CounterVec
	// EstimateTotal counts estimates by executed path and outcome.
	EstimateTotal *prometheus.CounterVec
	// EstimateFallbackTotal counts remote estimate failures answered locally.
	EstimateFallbackTotal *prometheus.CounterVec
	// UnresolvedItemsTotal counts selections whose family or plan was not in the catalog.
	UnresolvedItemsTotal *prometheus.CounterVec
	// UnmappedPlanTotal counts plans billed through the derived price ID.
	UnmappedPlanTotal *prometheus.CounterVec
	// StaleResponsesTotal counts responses dropped because a newer request superseded them.
	StaleResponsesTotal *prometheus.CounterVec
	// CheckoutAttemptsTotal counts checkout submission attempts by result.
	CheckoutAttemptsTotal *prometheus.CounterVec
	// CheckoutDuration records end-to-end checkout latency in milliseconds.
	CheckoutDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers the pricing collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CatalogFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_total",
			Help:      "Count of catalog loads by answering source.",
		}, []string{"source"})
		EstimateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_total",
			Help:      "Count of estimates by executed path and result.",
		}, []string{"path", "result"})
		EstimateFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_fallback_total",
			Help:      "Count of remote estimate failures answered by the local engine.",
		}, []string{"reason"})
		UnresolvedItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_unresolved_items_total",
			Help:      "Count of selections skipped because the catalog did not know them.",
		}, []string{"family"})
		UnmappedPlanTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_unmapped_plan_total",
			Help:      "Count of plans without an explicit billing price ID.",
		}, []string{"family"})
		StaleResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Count of responses discarded because a newer request superseded them.",
		}, []string{"kind"})
		CheckoutAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Count of checkout submission attempts by result.",
		}, []string{"result"})
		CheckoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Checkout submission latency in milliseconds, retries included.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})

		mustRegisterCollector(reg, CatalogFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogFetchTotal = v
			}
		})
		mustRegisterCollector(reg, EstimateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				EstimateTotal = v
			}
		})
		mustRegisterCollector(reg, EstimateFallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				EstimateFallbackTotal = v
			}
		})
		mustRegisterCollector(reg, UnresolvedItemsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				UnresolvedItemsTotal = v
			}
		})
		mustRegisterCollector(reg, UnmappedPlanTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				UnmappedPlanTotal = v
			}
		})
		mustRegisterCollector(reg, StaleResponsesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StaleResponsesTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutAttemptsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutDuration = v
			}
		})
	})
}

// Helpers below keep call sites free of nil checks when metrics are not registered.

// CountCatalogFetch records which source answered a catalog load.
func CountCatalogFetch(source string) {
	if CatalogFetchTotal != nil {
		CatalogFetchTotal.WithLabelValues(source).Inc()
	}
}

// CountEstimate records an estimate outcome.
func CountEstimate(path, result string) {
	if EstimateTotal != nil {
		EstimateTotal.WithLabelValues(path, result).Inc()
	}
}

// CountEstimateFallback records a remote estimate failure.
func CountEstimateFallback(reason string) {
	if EstimateFallbackTotal != nil {
		EstimateFallbackTotal.WithLabelValues(reason).Inc()
	}
}

// CountUnresolved records a skipped selection.
func CountUnresolved(family string) {
	if UnresolvedItemsTotal != nil {
		UnresolvedItemsTotal.WithLabelValues(family).Inc()
	}
}

// CountUnmappedPlan records a derived billing price ID.
func CountUnmappedPlan(family string) {
	if UnmappedPlanTotal != nil {
		UnmappedPlanTotal.WithLabelValues(family).Inc()
	}
}

// CountStale records a discarded response.
func CountStale(kind string) {
	if StaleResponsesTotal != nil {
		StaleResponsesTotal.WithLabelValues(kind).Inc()
	}
}

// CountCheckoutAttempt records a checkout attempt result.
func CountCheckoutAttempt(result string) {
	if CheckoutAttemptsTotal != nil {
		CheckoutAttemptsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCheckout records end-to-end checkout latency.
func ObserveCheckout(ms float64) {
	if CheckoutDuration != nil {
		CheckoutDuration.Observe(ms)
	}
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
