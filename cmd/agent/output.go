package agent

import (
	"github.com/spf13/cobra"
)

func initOutputFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("output.dir", defaultCfg.Output.Dir, "-> Output directory | 输出目录")
	f.String("output.totals_file", defaultCfg.Output.TotalsFile, "-> Per sample totals CSV | 每轮汇总文件")
	f.String("output.peak_file", defaultCfg.Output.PeakFile, "-> Per virtual server peak report | 峰值报告文件")
}
