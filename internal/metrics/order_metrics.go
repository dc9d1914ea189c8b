package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label source для инициализации генератора номеров.
const (
	SequencerSourceStore    = "store"
	SequencerSourceEmpty    = "empty"
	SequencerSourceFallback = "fallback"
)

// Значения label mode для запросов к каталогу товаров.
const (
	LookupModeStrict  = "strict"
	LookupModeLenient = "lenient"
)

// OrderMetrics содержит метрики сервиса заказов.
type OrderMetrics struct {
	ordersCreated  prometheus.Counter
	createFailures *prometheus.CounterVec
	productLookup  *prometheus.HistogramVec
	sequencerInit  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders persisted",
		}),
		createFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_create_failures_total",
			Help: "Total number of rejected or failed order creations by reason",
		}, []string{"reason"}),
		productLookup: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_product_lookup_duration_seconds",
			Help:    "Duration of product catalog lookups in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"mode", "result"}),
		sequencerInit: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_sequencer_init_total",
			Help: "Order number sequencer initializations by source",
		}, []string{"source"}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordCreateFailure увеличивает счётчик неудачных созданий с указанной причиной.
func (m *OrderMetrics) RecordCreateFailure(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

// RecordProductLookup записывает длительность запроса к каталогу.
func (m *OrderMetrics) RecordProductLookup(mode string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.productLookup.WithLabelValues(mode, result).Observe(duration.Seconds())
}

// RecordSequencerInit отмечает, откуда был восстановлен счётчик номеров.
func (m *OrderMetrics) RecordSequencerInit(source string) {
	if m == nil {
		return
	}
	m.sequencerInit.WithLabelValues(source).Inc()
}

// RecordHTTPRequest записывает результат HTTP-запроса.
func (m *OrderMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
