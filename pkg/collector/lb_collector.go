package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/metrics"
	"github.com/lb-peak-collector/pkg/model"
	"github.com/lb-peak-collector/pkg/monitor"
)

// StatsSource LB 清单与统计数据来源（nsx.Client）
type StatsSource interface {
	ListLoadBalancers(ctx context.Context) ([]model.LoadBalancerRef, error)
	GetLoadBalancerStatistics(ctx context.Context, lbID string) ([]model.VirtualServerStats, error)
}

// PeakStore 虚拟服务分类与峰值（registry.Registry）
type PeakStore interface {
	Resolve(ctx context.Context, path string) (string, bool, error)
	UpdatePeaks(path string, sample model.PeakMetrics) model.PeakMetrics
	Len() int
}

// LBCollector 每轮遍历所有 LB 及其虚拟服务，汇总派生指标并刷新峰值
type LBCollector struct {
	name            string
	cfg             *config.MonitorConfig
	source          StatsSource
	store           PeakStore
	metrics         monitor.LBCollectorMetrics
	collectErrors   *prometheus.CounterVec
	collectDuration *prometheus.HistogramVec
	now             func() time.Time
}

// NewLBCollector 创建 LB 采集器
func NewLBCollector(cfg *config.MonitorConfig, source StatsSource, store PeakStore, metricFactory *metrics.MetricFactory) *LBCollector {
	return &LBCollector{
		name:   "lb-collector",
		cfg:    cfg,
		source: source,
		store:  store,
		metrics: monitor.LBCollectorMetrics{
			RoundTotals:    metricFactory.NewRoundTotals(),
			LoadBalancers:  metricFactory.NewLoadBalancerCount(),
			VirtualServers: metricFactory.NewVirtualServerCount(),
			Peaks:          metricFactory.NewVirtualServerPeak(),
			Registered:     metricFactory.NewRegisteredVirtualServers(),
			Rounds:         metricFactory.NewRoundsTotal(),
		},
		collectErrors:   metricFactory.NewAgentCollectErrorsTotal(),
		collectDuration: metricFactory.NewAgentCollectDurationSeconds(),
		now:             time.Now,
	}
}

func (c *LBCollector) Name() string { return c.name }

// Derive 单个虚拟服务单轮派生指标
// cps 与 l4_bytes 不区分是否 TLS；tps/rps/ssl_bytes 仅 TLS 终结的服务有值
func Derive(s model.VirtualServerRates, isTLS bool) model.PeakMetrics {
	m := model.PeakMetrics{
		CPS:     s.HTTPRequestRate,
		L4Bytes: s.BytesInRate + s.BytesOutRate,
	}
	if isTLS {
		m.SSLBytes = s.BytesInRate + s.BytesOutRate
		m.TPS = s.CurrentSessionRate
		m.RPS = s.HTTPRequestRate
	}
	return m
}

// lbResult 单个 LB 的拉取结果，err 仅在 skip_failed_lb 时保留
type lbResult struct {
	id    string
	stats []model.VirtualServerStats
	err   error
}

// classified 已分类的样本，第二阶段统一提交
type classified struct {
	path   string
	sample model.PeakMetrics
}

// RunRound 执行一轮采集
// 拉取 -> 分类 -> 提交；任一步失败时峰值不会被部分更新
func (c *LBCollector) RunRound(ctx context.Context) (model.RoundTotals, error) {
	start := time.Now()
	defer func() {
		c.collectDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	totals, err := c.runRound(ctx)
	if err != nil {
		c.collectErrors.WithLabelValues(c.name).Inc()
		return model.RoundTotals{}, err
	}

	c.publish(totals)
	return totals, nil
}

func (c *LBCollector) runRound(ctx context.Context) (model.RoundTotals, error) {
	lbs, err := c.source.ListLoadBalancers(ctx)
	if err != nil {
		return model.RoundTotals{}, fmt.Errorf("list load balancers: %w", err)
	}

	totals := model.RoundTotals{
		Timestamp: c.now(),
		LBCount:   len(lbs),
	}

	results, err := c.fetch(ctx, lbs)
	if err != nil {
		return model.RoundTotals{}, err
	}

	// 按 LB 顺序依次合并，并发拉取与顺序拉取结果一致
	var samples []classified
	for _, r := range results {
		if r.err != nil {
			logger.Warn("skip load balancer",
				zap.String("name", c.name),
				zap.String("lb_id", r.id),
				zap.Error(r.err))
			c.collectErrors.WithLabelValues(c.name).Inc()
			continue
		}

		totals.VSCount += len(r.stats)
		for _, vs := range r.stats {
			_, isTLS, err := c.store.Resolve(ctx, vs.Path)
			if err != nil {
				return model.RoundTotals{}, fmt.Errorf("lb %s: %w", r.id, err)
			}
			samples = append(samples, classified{path: vs.Path, sample: Derive(vs.Statistics, isTLS)})
		}
	}

	for _, s := range samples {
		totals.Add(s.sample)
		peaks := c.store.UpdatePeaks(s.path, s.sample)
		c.publishPeaks(s.path, peaks)
	}
	return totals, nil
}

// fetch 拉取所有 LB 的统计；parallel_fetch 时用 errgroup 限流并发
func (c *LBCollector) fetch(ctx context.Context, lbs []model.LoadBalancerRef) ([]lbResult, error) {
	results := make([]lbResult, len(lbs))

	if !c.cfg.ParallelFetch {
		for i, lb := range lbs {
			stats, err := c.source.GetLoadBalancerStatistics(ctx, lb.ID)
			if err != nil && !c.cfg.SkipFailedLB {
				return nil, fmt.Errorf("lb %s statistics: %w", lb.ID, err)
			}
			results[i] = lbResult{id: lb.ID, stats: stats, err: err}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.MaxParallel, 1))
	for i, lb := range lbs {
		g.Go(func() error {
			stats, err := c.source.GetLoadBalancerStatistics(gctx, lb.ID)
			if err != nil && !c.cfg.SkipFailedLB {
				return fmt.Errorf("lb %s statistics: %w", lb.ID, err)
			}
			// 每个协程只写自己的下标
			results[i] = lbResult{id: lb.ID, stats: stats, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *LBCollector) publish(t model.RoundTotals) {
	c.metrics.RoundTotals.WithLabelValues("cps").Set(t.CPS)
	c.metrics.RoundTotals.WithLabelValues("l4_bytes").Set(t.L4Bytes)
	c.metrics.RoundTotals.WithLabelValues("tps").Set(t.TPS)
	c.metrics.RoundTotals.WithLabelValues("rps").Set(t.RPS)
	c.metrics.RoundTotals.WithLabelValues("ssl_bytes").Set(t.SSLBytes)
	c.metrics.LoadBalancers.Set(float64(t.LBCount))
	c.metrics.VirtualServers.Set(float64(t.VSCount))
	c.metrics.Registered.Set(float64(c.store.Len()))
	c.metrics.Rounds.Inc()
}

func (c *LBCollector) publishPeaks(path string, p model.PeakMetrics) {
	c.metrics.Peaks.WithLabelValues(path, "cps").Set(p.CPS)
	c.metrics.Peaks.WithLabelValues(path, "l4_bytes").Set(p.L4Bytes)
	c.metrics.Peaks.WithLabelValues(path, "tps").Set(p.TPS)
	c.metrics.Peaks.WithLabelValues(path, "rps").Set(p.RPS)
	c.metrics.Peaks.WithLabelValues(path, "ssl_bytes").Set(p.SSLBytes)
}
