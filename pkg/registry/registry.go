// Package registry 虚拟服务注册表：按 path 去重，记录分类结果与运行期峰值
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/model"
)

// ConfigLookup 虚拟服务配置查询（由 nsx.Client 实现）
type ConfigLookup interface {
	GetVirtualServerConfig(ctx context.Context, path string) (model.VirtualServerConfig, error)
}

// ClassificationError 首次出现的虚拟服务查询配置失败，不缓存任何结果
type ClassificationError struct {
	Path string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify virtual server %s: %v", e.Path, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Registry 条目只增不删，按首次出现顺序保存
// 采集循环单协程写入，RWMutex 用于 HTTP /peaks 并发读取
type Registry struct {
	mu      sync.RWMutex
	lookup  ConfigLookup
	index   map[string]int
	entries []model.VirtualServiceEntry
}

// New 创建空注册表
func New(lookup ConfigLookup) *Registry {
	return &Registry{
		lookup: lookup,
		index:  make(map[string]int),
	}
}

// Resolve 返回 path 对应的 vs id 与是否终结 TLS
// 首次出现时查询一次配置并缓存，之后不再调用接口
func (r *Registry) Resolve(ctx context.Context, path string) (string, bool, error) {
	r.mu.RLock()
	if i, ok := r.index[path]; ok {
		e := r.entries[i]
		r.mu.RUnlock()
		return e.ID, e.IsTLSTerminating, nil
	}
	r.mu.RUnlock()

	// 查询期间不持锁
	cfg, err := r.lookup.GetVirtualServerConfig(ctx, path)
	if err != nil {
		return "", false, &ClassificationError{Path: path, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[path]; ok {
		e := r.entries[i]
		return e.ID, e.IsTLSTerminating, nil
	}
	r.insertLocked(model.VirtualServiceEntry{
		Path:             path,
		ID:               cfg.ID,
		IsTLSTerminating: cfg.HasClientTLSProfile,
	})
	logger.Debug("new virtual server classified",
		zap.String("path", path),
		zap.String("vs_id", cfg.ID),
		zap.Bool("tls", cfg.HasClientTLSProfile))
	return cfg.ID, cfg.HasClientTLSProfile, nil
}

// UpdatePeaks 逐指标取最大值；未知 path 直接以样本建档
func (r *Registry) UpdatePeaks(path string, sample model.PeakMetrics) model.PeakMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[path]
	if !ok {
		i = r.insertLocked(model.VirtualServiceEntry{Path: path})
	}
	r.entries[i].Peaks = r.entries[i].Peaks.Max(sample)
	return r.entries[i].Peaks
}

func (r *Registry) insertLocked(e model.VirtualServiceEntry) int {
	r.entries = append(r.entries, e)
	i := len(r.entries) - 1
	r.index[e.Path] = i
	return i
}

// Snapshot 按首次出现顺序返回副本
func (r *Registry) Snapshot() []model.VirtualServiceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.VirtualServiceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
