package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約試行の総数（status: success, insufficient_capacity, not_found, validation_error, error）
	BookingsTotal *prometheus.CounterVec

	// 予約トランザクションの所要時間
	BookingDuration prometheus.Histogram

	// 発行した座席数更新の総数
	SeatUpdatesPublished prometheus.Counter

	// 現在のSSE購読者数
	SSESubscribers prometheus.Gauge

	// 座席数の不整合を検知した回数
	SeatCountDrift prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts",
			},
			[]string{"status"},
		),
		BookingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "booking_transaction_duration_seconds",
				Help:    "Time spent inside the booking transaction",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		SeatUpdatesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seat_updates_published_total",
				Help: "Total number of seat count updates published",
			},
		),
		SSESubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_subscribers",
				Help: "Current number of connected SSE subscribers",
			},
		),
		SeatCountDrift: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seat_count_drift_total",
				Help: "Number of events detected with inconsistent seat counts",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.BookingDuration,
		m.SeatUpdatesPublished,
		m.SSESubscribers,
		m.SeatCountDrift,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
