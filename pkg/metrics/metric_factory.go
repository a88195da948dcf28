package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace 业务指标统一前缀
const namespace = "lbstats"

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
// agent_* 指标由所有采集器共享，只注册一次
type MetricFactory struct {
	reg Registers

	mu            sync.Mutex
	agentErrors   *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// Registry 返回底层注册器（供 /metrics 暴露）
func (m *MetricFactory) Registry() Registers {
	return m.reg
}
