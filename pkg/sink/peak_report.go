package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/lb-peak-collector/pkg/model"
)

// PeakReport 每轮整体重写的峰值报告
// 先写临时文件再 rename，读者看到的永远是完整的一版
type PeakReport struct {
	path string
	meta model.RunMetadata
}

func NewPeakReport(path string, meta model.RunMetadata) *PeakReport {
	return &PeakReport{path: path, meta: meta}
}

// reportPerm 与汇总 CSV 一致，其他账号可读
const reportPerm = 0o644

func (p *PeakReport) tempPattern() string {
	return filepath.Base(p.path) + ".tmp-*"
}

// RemoveStale 清理上次进程在 rename 前被杀留下的临时文件
func (p *PeakReport) RemoveStale() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(p.path), p.tempPattern()))
	if err != nil {
		return nil, fmt.Errorf("glob stale peak reports: %w", err)
	}
	var removed []string
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove stale peak report %s: %w", m, err)
		}
		removed = append(removed, m)
	}
	return removed, nil
}

// StartMessage 启动提示，同时作为报告首行
func StartMessage(meta model.RunMetadata) string {
	return fmt.Sprintf("Started collection at %s for %d samples every %s seconds.",
		meta.StartedAt.Format(TimestampLayout), meta.Rounds, formatFloat(meta.Interval.Seconds()))
}

// Render 生成报告内容：首行说明、每个 VS 一行 JSON、汇总行
func (p *PeakReport) Render(entries []model.VirtualServiceEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(StartMessage(p.meta))
	buf.WriteString("This file contains the peak value of each metric observed on each virtual service at any sample period. \n")

	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode entry %s: %w", e.Path, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "Summary Peak Virtual Server Stats %s hours. cps=%s l4_bytes=%s tps=%s rps=%s ssl_bytes=%s\n",
		formatFloat(p.meta.PlannedHours()),
		formatFloat(lo.SumBy(entries, func(e model.VirtualServiceEntry) float64 { return e.Peaks.CPS })),
		formatFloat(lo.SumBy(entries, func(e model.VirtualServiceEntry) float64 { return e.Peaks.L4Bytes })),
		formatFloat(lo.SumBy(entries, func(e model.VirtualServiceEntry) float64 { return e.Peaks.TPS })),
		formatFloat(lo.SumBy(entries, func(e model.VirtualServiceEntry) float64 { return e.Peaks.RPS })),
		formatFloat(lo.SumBy(entries, func(e model.VirtualServiceEntry) float64 { return e.Peaks.SSLBytes })),
	)
	return buf.Bytes(), nil
}

// Write 渲染并原子替换报告文件
func (p *PeakReport) Write(entries []model.VirtualServiceEntry) error {
	data, err := p.Render(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), p.tempPattern())
	if err != nil {
		return fmt.Errorf("create temp peak report: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// rename 成功后临时文件已不存在
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write peak report: %w", err)
	}
	// CreateTemp 固定 0600，rename 后会沿用
	if err := tmp.Chmod(reportPerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod peak report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync peak report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close peak report: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace peak report %s: %w", p.path, err)
	}
	return nil
}
