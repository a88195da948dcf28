package agent

import (
	"github.com/spf13/cobra"
)

func initAPIFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "api."

	f.String(p+"url", defaultCfg.API.URL, "-> NSX Manager URL, e.g. https://nsx-mgr.example (NSX管理地址)")
	f.String(p+"username", defaultCfg.API.Username, "-> API username (用户名)")
	// 密码建议通过 LBSTATS_API_PASSWORD 传入
	f.String(p+"password", defaultCfg.API.Password, "-> API password (密码)")
	f.Bool(p+"insecure_skip_verify", defaultCfg.API.InsecureSkipVerify, "-> Skip TLS certificate verification (跳过证书校验)")
	f.Duration(p+"timeout", defaultCfg.API.Timeout, "-> Per request timeout (单次请求超时)")
	f.String(p+"statistics_source", defaultCfg.API.StatisticsSource, "-> Statistics source [realtime,cached] (统计来源)")
	f.Float64(p+"requests_per_second", defaultCfg.API.RequestsPerSecond, "-> API rate limit, 0 = unlimited (请求限速)")
	f.Int(p+"burst", defaultCfg.API.Burst, "-> API rate limit burst (限速突发数)")
}
