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
// ドキュメントストアのデコレータやサービス層から利用する。
type MetricsCollector interface {
	ObserveStoreOp(op, collection string, duration time.Duration, err error)
	RecordTriage(status string, success bool)
	RecordOutreach(outreachType string, success bool)
	RecordAssembly(records, unresolved int, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	SetStreamClients(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeOps        *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	triage          *prometheus.CounterVec
	outreach        *prometheus.CounterVec
	assemblyLatency prometheus.Histogram
	assembledTotal  prometheus.Counter
	unresolvedRefs  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdash_store_operations_total",
			Help: "ドキュメントストア操作の合計数",
		}, []string{"op", "collection", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobdash_store_operation_seconds",
			Help:    "ドキュメントストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		triage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdash_triage_total",
			Help: "求人の振り分け操作の合計数",
		}, []string{"status", "result"}),
		outreach: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdash_outreach_events_total",
			Help: "アウトリーチ記録の合計数",
		}, []string{"type", "result"}),
		assemblyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobdash_assembly_seconds",
			Help:    "JDレコード一覧の組み立てにかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		assembledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobdash_assembled_records_total",
			Help: "組み立てられたJDレコードの合計数",
		}),
		unresolvedRefs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobdash_unresolved_refs_total",
			Help: "解決できなかったサテライト参照の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobdash_stream_clients",
			Help: "接続中のライブストリームクライアント数",
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeLatency,
		c.triage,
		c.outreach,
		c.assemblyLatency,
		c.assembledTotal,
		c.unresolvedRefs,
		c.httpStatus,
		c.streamClients,
	)

	return c
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveStoreOp はドキュメントストア操作の結果とレイテンシを記録する。
func (c *Collector) ObserveStoreOp(op, collection string, duration time.Duration, err error) {
	c.storeOps.WithLabelValues(op, collection, result(err == nil)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTriage は求人の振り分け結果を記録する。
func (c *Collector) RecordTriage(status string, success bool) {
	c.triage.WithLabelValues(status, result(success)).Inc()
}

// RecordOutreach はアウトリーチ記録の結果を記録する。
func (c *Collector) RecordOutreach(outreachType string, success bool) {
	c.outreach.WithLabelValues(outreachType, result(success)).Inc()
}

// RecordAssembly はJDレコード一覧の組み立て結果を記録する。
func (c *Collector) RecordAssembly(records, unresolved int, duration time.Duration) {
	c.assemblyLatency.Observe(duration.Seconds())
	c.assembledTotal.Add(float64(records))
	c.unresolvedRefs.Add(float64(unresolved))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetStreamClients は接続中のライブストリームクライアント数を設定する。
func (c *Collector) SetStreamClients(n int) {
	c.streamClients.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
