package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lb-peak-collector/pkg/model"
)

type fakeLookup struct {
	mu      sync.Mutex
	configs map[string]model.VirtualServerConfig
	failing map[string]error
	calls   map[string]int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		configs: map[string]model.VirtualServerConfig{},
		failing: map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeLookup) GetVirtualServerConfig(_ context.Context, path string) (model.VirtualServerConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err, ok := f.failing[path]; ok {
		return model.VirtualServerConfig{}, err
	}
	return f.configs[path], nil
}

func TestResolveCachesFirstSighting(t *testing.T) {
	lookup := newFakeLookup()
	lookup.configs["/infra/lb-virtual-servers/web"] = model.VirtualServerConfig{ID: "web", HasClientTLSProfile: true}
	r := New(lookup)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, isTLS, err := r.Resolve(ctx, "/infra/lb-virtual-servers/web")
		require.NoError(t, err)
		assert.Equal(t, "web", id)
		assert.True(t, isTLS)
	}
	assert.Equal(t, 1, lookup.calls["/infra/lb-virtual-servers/web"])
	assert.Equal(t, 1, r.Len())
}

func TestResolveFailureCachesNothing(t *testing.T) {
	lookup := newFakeLookup()
	boom := errors.New("boom")
	lookup.failing["/infra/lb-virtual-servers/bad"] = boom
	r := New(lookup)

	_, _, err := r.Resolve(context.Background(), "/infra/lb-virtual-servers/bad")
	require.Error(t, err)

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "/infra/lb-virtual-servers/bad", ce.Path)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())

	// 失败后下一次仍会重新查询
	delete(lookup.failing, "/infra/lb-virtual-servers/bad")
	lookup.configs["/infra/lb-virtual-servers/bad"] = model.VirtualServerConfig{ID: "bad"}
	id, isTLS, err := r.Resolve(context.Background(), "/infra/lb-virtual-servers/bad")
	require.NoError(t, err)
	assert.Equal(t, "bad", id)
	assert.False(t, isTLS)
	assert.Equal(t, 2, lookup.calls["/infra/lb-virtual-servers/bad"])
}

func TestUpdatePeaks(t *testing.T) {
	r := New(newFakeLookup())

	got := r.UpdatePeaks("/vs/a", model.PeakMetrics{CPS: 10, L4Bytes: 100})
	assert.Equal(t, model.PeakMetrics{CPS: 10, L4Bytes: 100}, got)

	got = r.UpdatePeaks("/vs/a", model.PeakMetrics{CPS: 3, L4Bytes: 200, TPS: 1})
	assert.Equal(t, model.PeakMetrics{CPS: 10, L4Bytes: 200, TPS: 1}, got)

	// 重复样本不改变峰值
	again := r.UpdatePeaks("/vs/a", model.PeakMetrics{CPS: 3, L4Bytes: 200, TPS: 1})
	assert.Equal(t, got, again)
	assert.Equal(t, 1, r.Len())
}

func TestSnapshotOrderAndCopy(t *testing.T) {
	lookup := newFakeLookup()
	lookup.configs["/vs/b"] = model.VirtualServerConfig{ID: "b"}
	lookup.configs["/vs/a"] = model.VirtualServerConfig{ID: "a", HasClientTLSProfile: true}
	r := New(lookup)
	ctx := context.Background()

	for _, p := range []string{"/vs/b", "/vs/a", "/vs/b"} {
		_, _, err := r.Resolve(ctx, p)
		require.NoError(t, err)
		r.UpdatePeaks(p, model.PeakMetrics{CPS: 1})
	}

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "/vs/b", snap[0].Path)
	assert.Equal(t, "/vs/a", snap[1].Path)
	assert.True(t, snap[1].IsTLSTerminating)

	snap[0].Peaks.CPS = 999
	assert.Equal(t, 1.0, r.Snapshot()[0].Peaks.CPS)
}

func TestConcurrentReaders(t *testing.T) {
	lookup := newFakeLookup()
	r := New(lookup)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = r.Snapshot()
			_ = r.Len()
		}
	}()
	for i := 0; i < 200; i++ {
		_, _, err := r.Resolve(ctx, "/vs/x")
		require.NoError(t, err)
		r.UpdatePeaks("/vs/x", model.PeakMetrics{CPS: float64(i)})
	}
	wg.Wait()

	assert.Equal(t, 199.0, r.Snapshot()[0].Peaks.CPS)
	assert.Equal(t, 1, lookup.calls["/vs/x"])
}
