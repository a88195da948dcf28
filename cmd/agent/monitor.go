package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Float64("monitor.duration_days", defaultCfg.Monitor.DurationDays, "采集总时长（天）")
	f.Duration("monitor.interval", defaultCfg.Monitor.Interval, "采集间隔")
	f.Bool("monitor.parallel_fetch", defaultCfg.Monitor.ParallelFetch, "并发拉取各 LB 统计")
	f.Int("monitor.max_parallel", defaultCfg.Monitor.MaxParallel, "并发拉取上限")
	f.Bool("monitor.skip_failed_lb", defaultCfg.Monitor.SkipFailedLB, "单个 LB 失败时跳过而不是中止")

	f.Bool("monitor.collectors.self.enable", defaultCfg.Monitor.Collectors.Self.Enable, "采集自身进程 CPU/内存")
}
