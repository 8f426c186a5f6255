package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics はカメラ選択とHTTPのPrometheusメトリクスを保持する
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	probesTotal       *prometheus.CounterVec
	acquisitionsTotal *prometheus.CounterVec
	streaming         prometheus.Gauge
	cameras           *prometheus.GaugeVec
}

// New はメトリクスを作成して登録する
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camselect_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camselect_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camselect_probes_total",
			Help: "Total number of capability probes by result",
		}, []string{"result"}),
		acquisitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camselect_stream_acquisitions_total",
			Help: "Total number of stream acquisitions by result",
		}, []string{"result"}),
		streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camselect_streaming",
			Help: "1 while a stream is attached to the rendering target",
		}),
		cameras: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camselect_cameras",
			Help: "Number of usable cameras by direction",
		}, []string{"direction"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.probesTotal,
		m.acquisitionsTotal,
		m.streaming,
		m.cameras,
	)

	return m
}

// IncRequests はリクエスト数を加算する
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors はエラーレスポンス数を加算する
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveProbe はプローブの結果を記録する
func (m *Metrics) ObserveProbe(ok bool) {
	m.probesTotal.WithLabelValues(result(ok)).Inc()
}

// ObserveAcquisition はストリーム取得の結果を記録する
func (m *Metrics) ObserveAcquisition(ok bool) {
	m.acquisitionsTotal.WithLabelValues(result(ok)).Inc()
}

// SetStreaming は配信中かどうかを記録する
func (m *Metrics) SetStreaming(streaming bool) {
	if streaming {
		m.streaming.Set(1)
		return
	}
	m.streaming.Set(0)
}

// SetCameras は向きごとのカメラ数を記録する
func (m *Metrics) SetCameras(front, rear int) {
	m.cameras.WithLabelValues("front").Set(float64(front))
	m.cameras.WithLabelValues("rear").Set(float64(rear))
}

// Handler はPrometheusメトリクスを返すhttp.Handlerを返す
// updateGauges はスクレイプごとにゲージを更新するために呼ばれる
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

func result(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultFailure
}
