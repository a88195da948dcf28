// Package model 负载均衡统计采集的核心数据结构
package model

import "time"

// LoadBalancerRef 负载均衡实例引用（每轮重新拉取，不跨轮保存）
type LoadBalancerRef struct {
	ID string `json:"id"`
}

// VirtualServerRates 虚拟服务瞬时速率
type VirtualServerRates struct {
	BytesInRate        float64 `json:"bytes_in_rate"`
	BytesOutRate       float64 `json:"bytes_out_rate"`
	HTTPRequestRate    float64 `json:"http_request_rate"`
	CurrentSessionRate float64 `json:"current_session_rate"`
}

// VirtualServerStats 单轮单个虚拟服务的采样
type VirtualServerStats struct {
	Path       string             `json:"virtual_server_path"`
	Statistics VirtualServerRates `json:"statistics"`
}

// VirtualServerConfig 虚拟服务配置查询结果
// HasClientTLSProfile 为 true 表示绑定了 client SSL profile（即终结 TLS）
type VirtualServerConfig struct {
	ID                  string
	HasClientTLSProfile bool
}

// PeakMetrics 派生指标，既用于单轮样本，也用于运行期峰值
type PeakMetrics struct {
	CPS      float64 `json:"cps"`
	L4Bytes  float64 `json:"l4_bytes"`
	TPS      float64 `json:"tps"`
	RPS      float64 `json:"rps"`
	SSLBytes float64 `json:"ssl_bytes"`
}

// Max 逐指标取最大值，相等时保留当前值
func (p PeakMetrics) Max(sample PeakMetrics) PeakMetrics {
	return PeakMetrics{
		CPS:      pick(sample.CPS, p.CPS),
		L4Bytes:  pick(sample.L4Bytes, p.L4Bytes),
		TPS:      pick(sample.TPS, p.TPS),
		RPS:      pick(sample.RPS, p.RPS),
		SSLBytes: pick(sample.SSLBytes, p.SSLBytes),
	}
}

func pick(sample, cur float64) float64 {
	if sample > cur {
		return sample
	}
	return cur
}

// VirtualServiceEntry 注册表中的虚拟服务记录，按 Path 唯一
type VirtualServiceEntry struct {
	Path             string      `json:"virtual_server_path"`
	ID               string      `json:"vs_id"`
	IsTLSTerminating bool        `json:"is_SSL"`
	Peaks            PeakMetrics `json:"statistics"`
}

// RoundTotals 单轮汇总（所有虚拟服务派生指标之和）
type RoundTotals struct {
	Timestamp time.Time `json:"timestamp"`
	LBCount   int       `json:"lb_count"`
	VSCount   int       `json:"vs_count"`
	CPS       float64   `json:"cps"`
	L4Bytes   float64   `json:"l4_bytes"`
	TPS       float64   `json:"tps"`
	RPS       float64   `json:"rps"`
	SSLBytes  float64   `json:"ssl_bytes"`
}

// Add 累加单个虚拟服务的派生指标
func (t *RoundTotals) Add(m PeakMetrics) {
	t.CPS += m.CPS
	t.L4Bytes += m.L4Bytes
	t.TPS += m.TPS
	t.RPS += m.RPS
	t.SSLBytes += m.SSLBytes
}

// RunMetadata 本次采集运行的元信息
type RunMetadata struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Rounds    int           `json:"rounds"`
	Interval  time.Duration `json:"interval"`
}

// PlannedHours 计划采集总时长（小时）
func (m RunMetadata) PlannedHours() float64 {
	return m.Interval.Seconds() * float64(m.Rounds) / 3600
}
