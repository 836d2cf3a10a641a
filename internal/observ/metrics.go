package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stocktracker"

var (
	QuoteFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "quote_fetch_total", Help: "Quote source requests by outcome"},
		[]string{"source", "result"},
	)
	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "fallback_total", Help: "Times a fallback chain moved past its primary or used its last-resort value"},
		[]string{"chain"},
	)
	PriceUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "price_updates_total", Help: "Prices committed to market state"},
		[]string{"task"},
	)
	TaskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "task_runs_total", Help: "Periodic monitor task iterations"},
		[]string{"task", "result"},
	)
	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "alerts_total", Help: "Threshold alerts emitted"},
		[]string{"kind"},
	)
	AlertsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "alerts_dropped_total", Help: "Alert deliveries dropped because a consumer was full or failed"},
		[]string{"sink"},
	)
	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trades_total", Help: "Ledger trade attempts"},
		[]string{"side", "result"},
	)
	USDRate = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "usd_rate", Help: "Last observed USD exchange rate"},
	)
)

func init() {
	prometheus.MustRegister(QuoteFetches, Fallbacks, PriceUpdates, TaskRuns, AlertsFired, AlertsDropped, Trades, USDRate)
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
