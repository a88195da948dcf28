package registers

import (
	"context"

	"github.com/lb-peak-collector/pkg/model"
)

// Agent 顶层调度接口：固定轮数驱动采集与持久化
type Agent interface {
	Register(collector Collector)  // 注册辅助采集器
	Run(ctx context.Context) error // 阻塞执行全部轮次
	State() State
}

// Collector 辅助采集器接口（每轮结束后执行，失败只告警）
type Collector interface {
	Name() string                      // 采集器名称（唯一标识）
	Init() error                       // 初始化（注册指标、预检查资源）
	Collect(ctx context.Context) error // 采集数据（更新指标）
	Close() error                      // 关闭（释放资源）
}

// RoundCollector 单轮 LB 采集（collector.LBCollector）
type RoundCollector interface {
	Name() string
	RunRound(ctx context.Context) (model.RoundTotals, error)
}

// Sink 每轮结果持久化（sink.Sink）
type Sink interface {
	Persist(totals model.RoundTotals) error
	Close() error
}
