// Package metrics exposes engine counters over Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	ordersProcessed prometheus.Counter
	ordersRejected  prometheus.Counter
	tradesExecuted  prometheus.Counter
	bidDepth        prometheus.Gauge
	askDepth        prometheus.Gauge
	matchingLatency prometheus.Histogram
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total number of orders processed",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Total number of orders rejected before entering the book",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed",
		}),
		bidDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_bid_quantity",
			Help:      "Aggregate resting quantity on the bid side",
		}),
		askDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_ask_quantity",
			Help:      "Aggregate resting quantity on the ask side",
		}),
		matchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_latency_nanoseconds",
			Help:      "Order matching latency in nanoseconds",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}),
	}

	registry.MustRegister(
		m.ordersProcessed,
		m.ordersRejected,
		m.tradesExecuted,
		m.bidDepth,
		m.askDepth,
		m.matchingLatency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) OrderProcessed()     { m.ordersProcessed.Inc() }
func (m *Metrics) OrderRejected()      { m.ordersRejected.Inc() }
func (m *Metrics) TradesExecuted(n int) {
	m.tradesExecuted.Add(float64(n))
}

func (m *Metrics) SetDepth(bids, asks int64) {
	m.bidDepth.Set(float64(bids))
	m.askDepth.Set(float64(asks))
}

func (m *Metrics) ObserveMatchLatency(d time.Duration) {
	m.matchingLatency.Observe(float64(d.Nanoseconds()))
}
