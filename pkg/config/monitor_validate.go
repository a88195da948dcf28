package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 未启用时不校验地址
	if !h.Enable {
		return nil
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("[ERROR] Server.Addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	_, err := net.ResolveTCPAddr("tcp", h.Addr)
	if err != nil {
		return fmt.Errorf("[ERROR] Server.Addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}

	return nil
}

// Validate 采集调度配置校验
func (m *MonitorConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}
	if m.Interval < time.Second || m.Interval > 3600*time.Second {
		return fmt.Errorf("monitor.interval must be between 1 and 3600 seconds, got %s", m.Interval)
	}
	// 	总时长不足一个间隔则一轮都不会执行
	if m.Rounds() < 1 {
		return fmt.Errorf("monitor.duration_days (%g) is shorter than one interval (%s)", m.DurationDays, m.Interval)
	}
	return nil
}

// Validate 输出文件配置校验
// 文件名不能包含路径分隔符，两个文件不能同名
func (o *OutputConfig) Validate() error {
	if err := valid.Struct(o); err != nil {
		return err
	}
	for _, name := range []string{o.TotalsFile, o.PeakFile} {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("output file %q must be a bare file name", name)
		}
	}
	if o.TotalsFile == o.PeakFile {
		return fmt.Errorf("output.totals_file and output.peak_file must differ, both are %q", o.TotalsFile)
	}
	abs, err := filepath.Abs(o.Dir)
	if err != nil {
		return fmt.Errorf("output.dir failed to parse %s: %w", o.Dir, err)
	}
	if err := ensureDir(abs); err != nil {
		return fmt.Errorf("output.dir is not writable, got %s: %w", o.Dir, err)
	}
	return nil
}
