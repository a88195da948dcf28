package registers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/collector"
	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/metrics"
	"github.com/lb-peak-collector/pkg/model"
	"github.com/lb-peak-collector/pkg/nsx"
	"github.com/lb-peak-collector/pkg/registry"
	"github.com/lb-peak-collector/pkg/sink"
)

type Module struct {
	Enabled bool
	Name    string
	NewFunc func() Collector
}

// Runtime InitAgent 返回值
// Agent	  调度器，Run 阻塞执行全部轮次
// Registry   虚拟服务注册表，/peaks 读取
// Metrics	  Prometheus 注册器，/metrics 暴露
// Meta	      本次运行元信息
type Runtime struct {
	Agent    *AgentImpl
	Registry *registry.Registry
	Metrics  metrics.Registers
	Meta     model.RunMetadata
}

// InitAgent 组装 API 客户端、注册表、采集器、输出，返回尚未启动的调度器
func InitAgent(cfg *config.Config) (*Runtime, error) {
	// 不注册 Go 运行时指标，自身进程资源由 self-collector 采集
	promReg := metrics.NewPromRegistry(prometheus.NewRegistry())
	metricFactory := metrics.NewMetricFactory(promReg)

	client := nsx.NewClient(&cfg.API, metricFactory.NewAPIRequestDuration())
	vsRegistry := registry.New(client)

	meta := model.RunMetadata{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Rounds:    cfg.Monitor.Rounds(),
		Interval:  cfg.Monitor.Interval,
	}

	out, err := sink.New(&cfg.Output, meta, vsRegistry)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	lbCollector := collector.NewLBCollector(&cfg.Monitor, client, vsRegistry, metricFactory)
	agent := NewAgent(lbCollector, out, meta.Rounds, meta.Interval)

	registered := RegisterCollectors(agent, cfg, metricFactory)
	logger.Debug("agent assembled",
		zap.String("run_id", meta.RunID),
		zap.String("api", cfg.API.URL),
		zap.Int("rounds", meta.Rounds),
		zap.Int("auxiliary_collectors", len(registered)))

	return &Runtime{
		Agent:    agent,
		Registry: vsRegistry,
		Metrics:  promReg,
		Meta:     meta,
	}, nil
}

// RegisterCollectors 辅助采集器注册统一入口
// 新增采集器只需在 modules 列表添加一条，不必写重复的 if/else。
func RegisterCollectors(agent Agent, cfg *config.Config, metricFactory *metrics.MetricFactory) []Collector {
	modules := []Module{
		{
			Enabled: cfg.Monitor.Collectors.Self.Enable,
			Name:    "self",
			NewFunc: func() Collector {
				return collector.NewSelfCollector(metricFactory)
			},
		},
	}

	var registered []Collector
	for _, m := range modules {
		if !m.Enabled {
			logger.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		c := m.NewFunc()
		agent.Register(c)
		registered = append(registered, c)
		logger.Debug("registered collector", zap.String("name", m.Name))
	}
	return registered
}
