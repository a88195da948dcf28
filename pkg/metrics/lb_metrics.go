package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -------------------------- 单轮汇总 --------------------------

// NewRoundTotals 最近一轮各指标总和，metric 标签取 cps/l4_bytes/tps/rps/ssl_bytes
func (f *MetricFactory) NewRoundTotals() *prometheus.GaugeVec {
	return promauto.With(f.reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_total",
			Help:      "Sum of derived metrics over all virtual servers in the latest round",
		},
		[]string{"metric"},
	)
}

func (f *MetricFactory) NewLoadBalancerCount() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "load_balancers",
		Help:      "Number of load balancers seen in the latest round",
	})
}

// NewVirtualServerCount 各 LB 返回的虚拟服务数之和（同一 VS 挂在多个 LB 下会重复计数）
func (f *MetricFactory) NewVirtualServerCount() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "virtual_servers",
		Help:      "Sum of per load balancer virtual server counts in the latest round",
	})
}

func (f *MetricFactory) NewRoundsTotal() prometheus.Counter {
	return promauto.With(f.reg).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Completed collection rounds",
	})
}

// -------------------------- 每个 VS 峰值 --------------------------

func (f *MetricFactory) NewVirtualServerPeak() *prometheus.GaugeVec {
	return promauto.With(f.reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "virtual_server_peak",
			Help:      "Running peak of each derived metric per virtual server",
		},
		[]string{"path", "metric"},
	)
}

func (f *MetricFactory) NewRegisteredVirtualServers() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registered_virtual_servers",
		Help:      "Distinct virtual servers observed since start",
	})
}

// -------------------------- API 请求 --------------------------

// NewAPIRequestDuration NSX 接口请求耗时，op 区分三类调用
func (f *MetricFactory) NewAPIRequestDuration() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "NSX API request latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 0.01s ~ 5.12s
		},
		[]string{"op"},
	)
}
