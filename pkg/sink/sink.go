// Package sink 采集结果持久化：CSV 汇总追加 + 峰值报告重写
package sink

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/model"
)

// SnapshotSource 峰值快照来源（registry.Registry）
type SnapshotSource interface {
	Snapshot() []model.VirtualServiceEntry
}

// Sink 每轮先追加汇总再重写峰值报告
type Sink struct {
	totals *TotalsLog
	report *PeakReport
	source SnapshotSource
}

// New 在 output.dir 下创建（截断）汇总文件
func New(cfg *config.OutputConfig, meta model.RunMetadata, source SnapshotSource) (*Sink, error) {
	totals, err := OpenTotalsLog(filepath.Join(cfg.Dir, cfg.TotalsFile))
	if err != nil {
		return nil, err
	}
	reportPath := filepath.Join(cfg.Dir, cfg.PeakFile)
	report := NewPeakReport(reportPath, meta)
	removed, err := report.RemoveStale()
	if err != nil {
		_ = totals.Close()
		return nil, err
	}
	if len(removed) > 0 {
		logger.Warn("removed stale peak report temp files", zap.Strings("files", removed))
	}
	logger.Debug("output files ready",
		zap.String("totals", totals.path),
		zap.String("peaks", reportPath))
	return &Sink{
		totals: totals,
		report: report,
		source: source,
	}, nil
}

// Persist 持久化一轮结果
func (s *Sink) Persist(t model.RoundTotals) error {
	if err := s.totals.Append(t); err != nil {
		return fmt.Errorf("append totals: %w", err)
	}
	if err := s.report.Write(s.source.Snapshot()); err != nil {
		return fmt.Errorf("write peak report: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.totals.Close()
}
