// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン手段のラベル
const (
	LoginMethodPassword = "password"
	LoginMethodGoogle   = "google"
)

// Collector はPrometheusメトリクスを収集する実装。
// middleware.AuthObserver、middleware.HTTPObserver、cleanupジョブの通知先を兼ねる。
type Collector struct {
	authResolutions *prometheus.CounterVec
	logins          *prometheus.CounterVec
	registrations   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	sessionsPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medialog_auth_resolutions_total",
			Help: "認証判定の結果別件数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medialog_logins_total",
			Help: "ログイン試行の手段・結果別件数",
		}, []string{"method", "result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medialog_registrations_total",
			Help: "パスワード登録の成功件数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medialog_http_requests_total",
			Help: "リクエスト種別・ステータスコード別のレスポンス数",
		}, []string{"class", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medialog_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medialog_sessions_purged_total",
			Help: "クリーンアップで削除した期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.authResolutions,
		c.logins,
		c.registrations,
		c.httpRequests,
		c.httpLatency,
		c.sessionsPurged,
	)

	return c
}

// ObserveAuthResolution は認証判定の結果を記録する。
func (c *Collector) ObserveAuthResolution(outcome string) {
	c.authResolutions.WithLabelValues(outcome).Inc()
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(method string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordRegistration は新規登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// ObserveHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
func (c *Collector) ObserveHTTPRequest(class string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(class, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
