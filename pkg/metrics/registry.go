package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registers 隔离 Prometheus 具体实现，业务代码只依赖注册与采集两个能力
type Registers interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// promRegistry 包裹官方 *prometheus.Registry
type promRegistry struct {
	*prometheus.Registry
}

// NewPromRegistry 创建指标注册器，registry 为 nil 时新建一个（不含 Go 运行时指标）
func NewPromRegistry(registry *prometheus.Registry) Registers {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &promRegistry{Registry: registry}
}

// MustRegister 重复注册直接 panic，便于启动阶段暴露指标命名冲突
func (p *promRegistry) MustRegister(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := p.Registry.Register(c); err != nil {
			panic(err)
		}
	}
}
