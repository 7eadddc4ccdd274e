package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	ATCommandTotal   *prometheus.CounterVec // labels: command, result=ok|error
	ATRetryTotal     prometheus.Counter     // 指令重试计数
	ExchangeDuration prometheus.Histogram   // 单条指令交换耗时（含重试）
	UplinkTotal      *prometheus.CounterVec // labels: result=delivered|failed|rejected
	UplinkQueueDepth prometheus.Gauge       // 当前排队上行数
	ThrottledTotal   prometheus.Counter     // 被占空比限流推迟的发送计数
	JoinedGauge      prometheus.Gauge       // 当前入网状态（0/1）
	JoinDuration     prometheus.Histogram   // 入网耗时（秒）
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		ATCommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "at_command_total",
			Help: "AT command exchanges by command and terminal result.",
		}, []string{"command", "result"}),
		ATRetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "at_retry_total",
			Help: "Total AT command retry attempts.",
		}),
		ExchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "at_exchange_duration_seconds",
			Help:    "AT command exchange duration including retries.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UplinkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uplink_total",
			Help: "Uplink messages by terminal result.",
		}, []string{"result"}),
		UplinkQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uplink_queue_depth",
			Help: "Uplink messages currently queued.",
		}),
		ThrottledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uplink_throttled_total",
			Help: "Uplink sends delayed by the airtime limiter.",
		}),
		JoinedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lorawan_joined",
			Help: "Whether the module currently reports a joined network (0/1).",
		}),
		JoinDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lorawan_join_duration_seconds",
			Help:    "Observed time from join start to joined status.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.ATCommandTotal, m.ATRetryTotal, m.ExchangeDuration,
		m.UplinkTotal, m.UplinkQueueDepth, m.ThrottledTotal,
		m.JoinedGauge, m.JoinDuration)
	return m
}
