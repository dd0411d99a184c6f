package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_unlock",
			Subsystem: "ledger",
			Name:      "purchases_total",
			Help:      "Purchase attempts by result.",
		},
		[]string{"result"},
	)

	referrals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_unlock",
			Subsystem: "referrals",
			Name:      "processed_total",
			Help:      "Processed referral payloads by outcome.",
		},
		[]string{"outcome", "rewarded"},
	)

	grantedCoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "content_unlock",
			Subsystem: "accounts",
			Name:      "granted_coins_total",
			Help:      "Coins credited by operators.",
		},
	)

	catalogSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_unlock",
			Subsystem: "catalog",
			Name:      "syncs_total",
			Help:      "Catalog mirror refreshes by result.",
		},
		[]string{"result"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "content_unlock",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		purchases,
		referrals,
		grantedCoins,
		catalogSyncs,
		httpDuration,
	)
}

func RecordPurchase(result string) {
	purchases.WithLabelValues(result).Inc()
}

func RecordReferral(outcome string, rewarded bool) {
	referrals.WithLabelValues(outcome, strconv.FormatBool(rewarded)).Inc()
}

func RecordGrant(coins int64) {
	grantedCoins.Add(float64(coins))
}

func RecordCatalogSync(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	catalogSyncs.WithLabelValues(result).Inc()
}

// ObserveHTTP records one handled request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
