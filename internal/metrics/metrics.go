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
// フィードプロバイダー、アセンブラー、フィードサービスから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordItemRejected(rule string)
	RecordItemsServed(count int)
	RecordStaleServe()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess  prometheus.Counter
	fetchFail     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	itemsRejected *prometheus.CounterVec
	itemsServed   prometheus.Gauge
	staleServes   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedview_fetch_success_total",
			Help: "フィードフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedview_fetch_fail_total",
			Help: "理由別のフィードフェッチ失敗の合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedview_http_status_total",
			Help: "上流フィードのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedview_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedview_items_rejected_total",
			Help: "安全性判定で除外された記事の検出ルール別合計数",
		}, []string{"rule"}),
		itemsServed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedview_items_served",
			Help: "現在表示対象となっている記事数",
		}),
		staleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedview_stale_serve_total",
			Help: "取得失敗により以前の結果を返した回数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.itemsRejected,
		c.itemsServed,
		c.staleServes,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordItemRejected は安全性判定で除外された記事を検出ルール付きで記録する。
func (c *Collector) RecordItemRejected(rule string) {
	c.itemsRejected.WithLabelValues(rule).Inc()
}

// RecordItemsServed は表示対象の記事数を記録する。
func (c *Collector) RecordItemsServed(count int) {
	c.itemsServed.Set(float64(count))
}

// RecordStaleServe は以前の結果を返したことを記録する。
func (c *Collector) RecordStaleServe() {
	c.staleServes.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordFetchSuccess()              {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordItemRejected(string)        {}
func (Nop) RecordItemsServed(int)            {}
func (Nop) RecordStaleServe()                {}
