package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAgentCollectErrorsTotal 创建「采集器错误总数」指标
// 指标类型：Counter（计数器）- 仅支持单调递增，服务重启后会重置为0
// 核心作用：统计各采集器在运行过程中发生的采集错误累计次数
// 标签说明：
// collector: 采集器名称（如 "lb-collector"、"self-collector"），用于区分不同采集模块
func (m *MetricFactory) NewAgentCollectErrorsTotal() *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agentErrors != nil {
		return m.agentErrors
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_collect_errors_total",
		Help: "Total collection errors",
	}, []string{"collector"})
	m.reg.MustRegister(c)
	m.agentErrors = c
	return c
}

// NewAgentCollectDurationSeconds 创建「采集器采集耗时分布」指标
// 指标类型：Histogram（直方图）
// 一轮 LB 采集要对每个 LB 发请求，耗时通常在百毫秒到数秒之间
//
// 分桶说明：0.05s ~ 25.6s 指数分桶
func (m *MetricFactory) NewAgentCollectDurationSeconds() *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agentDuration != nil {
		return m.agentDuration
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_collect_duration_seconds",
		Help:    "Collection duration per collector",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"collector"})
	m.reg.MustRegister(h)
	m.agentDuration = h
	return h
}
