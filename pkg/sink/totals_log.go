package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/lb-peak-collector/pkg/model"
)

// TimestampLayout 汇总文件与峰值报告共用的时间格式（微秒精度）
const TimestampLayout = "2006-01-02 15:04:05.000000"

var totalsHeader = []string{"timestamp", "lb_count", "vs_count", "cps", "l4_bytes", "tps", "rps", "ssl_bytes"}

// TotalsLog 每轮一行的 CSV 汇总，每次追加都落盘
type TotalsLog struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// OpenTotalsLog 以截断方式创建文件并写入表头
func OpenTotalsLog(path string) (*TotalsLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create totals log %s: %w", path, err)
	}
	l := &TotalsLog{path: path, f: f, w: csv.NewWriter(f)}
	if err := l.write(totalsHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// Append 追加一轮汇总
func (l *TotalsLog) Append(t model.RoundTotals) error {
	return l.write([]string{
		t.Timestamp.Format(TimestampLayout),
		strconv.Itoa(t.LBCount),
		strconv.Itoa(t.VSCount),
		formatFloat(t.CPS),
		formatFloat(t.L4Bytes),
		formatFloat(t.TPS),
		formatFloat(t.RPS),
		formatFloat(t.SSLBytes),
	})
}

func (l *TotalsLog) write(record []string) error {
	if l.f == nil {
		return fmt.Errorf("totals log %s: already closed", l.path)
	}
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("write totals log %s: %w", l.path, err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush totals log %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync totals log %s: %w", l.path, err)
	}
	return nil
}

// Close 可重复调用
func (l *TotalsLog) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
