package collector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/metrics"
	"github.com/lb-peak-collector/pkg/monitor"
)

// SelfCollector 采集器自身进程资源（实现 registers.Collector 接口）
type SelfCollector struct {
	name            string
	proc            *process.Process
	metrics         monitor.SelfCollectorMetrics
	collectErrors   *prometheus.CounterVec
	collectDuration *prometheus.HistogramVec
}

// NewSelfCollector 创建自身进程采集器
func NewSelfCollector(metricFactory *metrics.MetricFactory) *SelfCollector {
	return &SelfCollector{
		name: "self-collector",
		metrics: monitor.SelfCollectorMetrics{
			RSSBytes:   metricFactory.NewProcessRSSBytes(),
			CPUPercent: metricFactory.NewProcessCPUPercent(),
			Threads:    metricFactory.NewProcessThreads(),
		},
		collectErrors:   metricFactory.NewAgentCollectErrorsTotal(),
		collectDuration: metricFactory.NewAgentCollectDurationSeconds(),
	}
}

func (c *SelfCollector) Name() string { return c.name }

// Init 定位当前进程
func (c *SelfCollector) Init() error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Error("failed to open self process", zap.Error(err))
		return fmt.Errorf("open self process: %w", err)
	}
	c.proc = p
	return nil
}

// Collect 更新 RSS、CPU、线程数；单项失败只计数
func (c *SelfCollector) Collect(ctx context.Context) error {
	if c.proc == nil {
		return fmt.Errorf("%s: not initialized", c.name)
	}
	start := time.Now()
	defer func() {
		c.collectDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	mem, err := c.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		c.collectErrors.WithLabelValues(c.name).Inc()
		return fmt.Errorf("get memory info failed: %w", err)
	}
	c.metrics.RSSBytes.Set(float64(mem.RSS))

	if pct, err := c.proc.CPUPercentWithContext(ctx); err != nil {
		logger.Warn("failed to get process cpu", zap.Error(err))
		c.collectErrors.WithLabelValues(c.name).Inc()
	} else {
		c.metrics.CPUPercent.Set(pct)
	}

	if n, err := c.proc.NumThreadsWithContext(ctx); err != nil {
		logger.Warn("failed to get process threads", zap.Error(err))
		c.collectErrors.WithLabelValues(c.name).Inc()
	} else {
		c.metrics.Threads.Set(float64(n))
	}

	logger.Debug("collected self metrics", zap.String("name", c.name), zap.Uint64("rss", mem.RSS))
	return nil
}

func (c *SelfCollector) Close() error {
	return nil
}
