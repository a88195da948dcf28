package monitor

import "github.com/prometheus/client_golang/prometheus"

// -------------------------- LB 采集器指标结构体 --------------------------
type LBCollectorMetrics struct {
	RoundTotals    *prometheus.GaugeVec // 最近一轮汇总，按 metric 区分
	LoadBalancers  prometheus.Gauge
	VirtualServers prometheus.Gauge     // 各 LB 的 VS 数之和
	Peaks          *prometheus.GaugeVec // 每个 VS 的运行期峰值
	Registered     prometheus.Gauge     // 注册表条目数
	Rounds         prometheus.Counter
}

// -------------------------- 自身进程采集器指标结构体 --------------------------
type SelfCollectorMetrics struct {
	RSSBytes   prometheus.Gauge
	CPUPercent prometheus.Gauge
	Threads    prometheus.Gauge
}
