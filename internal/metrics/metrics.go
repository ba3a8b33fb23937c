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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordSessionResolution(tier string)
	RecordProfileProvisioned()
	RecordClassCreation(outcome string)
	RecordRecordAdded()
	RecordClassesAggregated(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// クラス作成結果のラベル値。
const (
	ClassCreationCreated   = "created"
	ClassCreationDuplicate = "duplicate"
	ClassCreationInvalid   = "invalid"
	ClassCreationError     = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionResolutions *prometheus.CounterVec
	profileProvisioned prometheus.Counter
	classCreations     *prometheus.CounterVec
	recordsAdded       prometheus.Counter
	classesAggregated  prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classtime_session_resolutions_total",
			Help: "アクセス階層別のセッション評価数",
		}, []string{"tier"}),
		profileProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classtime_profiles_provisioned_total",
			Help: "初回サインイン時に作成されたプロファイルの合計数",
		}),
		classCreations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classtime_class_creations_total",
			Help: "結果別のクラス作成リクエスト数",
		}, []string{"outcome"}),
		recordsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classtime_records_added_total",
			Help: "追加された時間記録の合計数",
		}),
		classesAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classtime_classes_aggregated_total",
			Help: "統計を再集計したクラスの延べ数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classtime_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classtime_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.sessionResolutions,
		c.profileProvisioned,
		c.classCreations,
		c.recordsAdded,
		c.classesAggregated,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSessionResolution はセッション評価の結果階層を記録する。
func (c *Collector) RecordSessionResolution(tier string) {
	c.sessionResolutions.WithLabelValues(tier).Inc()
}

// RecordProfileProvisioned はプロファイルの初回作成を記録する。
func (c *Collector) RecordProfileProvisioned() {
	c.profileProvisioned.Inc()
}

// RecordClassCreation はクラス作成リクエストの結果を記録する。
func (c *Collector) RecordClassCreation(outcome string) {
	c.classCreations.WithLabelValues(outcome).Inc()
}

// RecordRecordAdded は時間記録の追加を記録する。
func (c *Collector) RecordRecordAdded() {
	c.recordsAdded.Inc()
}

// RecordClassesAggregated は再集計したクラス数を記録する。
func (c *Collector) RecordClassesAggregated(count int) {
	c.classesAggregated.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
