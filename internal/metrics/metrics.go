// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期エンジンとミドルウェアから利用する。
type MetricsCollector interface {
	RecordReconcileSuccess()
	RecordReconcileFailure(reason string)
	RecordEventsUpserted(count int)
	RecordGatewayLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reconcileSuccess prometheus.Counter
	reconcileFail    *prometheus.CounterVec
	eventsUpserted   prometheus.Counter
	gatewayLatency   prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reconcileSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calmirror_reconcile_success_total",
			Help: "リコンサイル成功の合計数",
		}),
		reconcileFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calmirror_reconcile_fail_total",
			Help: "リコンサイル失敗の合計数（理由別）",
		}, []string{"reason"}),
		eventsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calmirror_events_upserted_total",
			Help: "ミラーにアップサートされたイベントの合計数",
		}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calmirror_gateway_latency_seconds",
			Help:    "Google Calendar API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calmirror_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.reconcileSuccess,
		c.reconcileFail,
		c.eventsUpserted,
		c.gatewayLatency,
		c.httpStatus,
	)

	return c
}

// RecordReconcileSuccess はリコンサイル成功を記録する。
func (c *Collector) RecordReconcileSuccess() {
	c.reconcileSuccess.Inc()
}

// RecordReconcileFailure はリコンサイル失敗を理由付きで記録する。
func (c *Collector) RecordReconcileFailure(reason string) {
	c.reconcileFail.WithLabelValues(reason).Inc()
}

// RecordEventsUpserted はアップサートされたイベント数を記録する。
func (c *Collector) RecordEventsUpserted(count int) {
	c.eventsUpserted.Add(float64(count))
}

// RecordGatewayLatency は上流API呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
