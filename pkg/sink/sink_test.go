package sink

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/model"
)

type staticSnapshot []model.VirtualServiceEntry

func (s staticSnapshot) Snapshot() []model.VirtualServiceEntry { return s }

func testMeta() model.RunMetadata {
	return model.RunMetadata{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC),
		Rounds:    17280,
		Interval:  5 * time.Second,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestTotalsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "total-stats.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	l, err := OpenTotalsLog(path)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 10, 0, 5, 500000, time.UTC)
	require.NoError(t, l.Append(model.RoundTotals{
		Timestamp: ts, LBCount: 2, VSCount: 3,
		CPS: 10, L4Bytes: 150.5, TPS: 5, RPS: 10, SSLBytes: 0,
	}))

	// 未 Close 前内容已可读
	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "lb_count", "vs_count", "cps", "l4_bytes", "tps", "rps", "ssl_bytes"}, rows[0])
	assert.Equal(t, []string{"2024-03-01 10:00:05.000500", "2", "3", "10", "150.5", "5", "10", "0"}, rows[1])

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Error(t, l.Append(model.RoundTotals{}))
}

func TestPeakReportRender(t *testing.T) {
	entries := []model.VirtualServiceEntry{
		{Path: "/infra/lb-virtual-servers/web", ID: "web", IsTLSTerminating: true,
			Peaks: model.PeakMetrics{CPS: 10, L4Bytes: 150, TPS: 5, RPS: 10, SSLBytes: 150}},
		{Path: "/infra/lb-virtual-servers/api", ID: "api",
			Peaks: model.PeakMetrics{CPS: 2, L4Bytes: 20}},
	}

	data, err := NewPeakReport("unused", testMeta()).Render(entries)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "Started collection at 2024-03-01 10:00:00.123456 for 17280 samples every 5 seconds."+
		"This file contains the peak value of each metric observed on each virtual service at any sample period. ", lines[0])

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &first))
	assert.Equal(t, "/infra/lb-virtual-servers/web", first["virtual_server_path"])
	assert.Equal(t, "web", first["vs_id"])
	assert.Equal(t, true, first["is_SSL"])
	stats := first["statistics"].(map[string]any)
	assert.Equal(t, 150.0, stats["ssl_bytes"])

	assert.Equal(t, "Summary Peak Virtual Server Stats 24 hours. cps=12 l4_bytes=170 tps=5 rps=10 ssl_bytes=150", lines[3])
}

func TestPeakReportWriteReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peak-stats-per-vs.txt")
	r := NewPeakReport(path, testMeta())

	require.NoError(t, r.Write([]model.VirtualServiceEntry{{Path: "/vs/a", Peaks: model.PeakMetrics{CPS: 1}}}))
	require.NoError(t, r.Write([]model.VirtualServiceEntry{{Path: "/vs/a", Peaks: model.PeakMetrics{CPS: 7}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cps":7`)
	assert.NotContains(t, string(data), `"cps":1,`)

	// 不残留临时文件
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// 与 CSV 一样对其他账号可读
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestSinkRemovesStaleTempReports(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.OutputConfig{Dir: dir, TotalsFile: "total-stats.csv", PeakFile: "peak-stats-per-vs.txt"}

	stale := filepath.Join(dir, "peak-stats-per-vs.txt.tmp-123456")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o600))
	unrelated := filepath.Join(dir, "notes.tmp-1")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

	s, err := New(cfg, testMeta(), staticSnapshot{})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestSinkPersist(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.OutputConfig{Dir: dir, TotalsFile: "total-stats.csv", PeakFile: "peak-stats-per-vs.txt"}
	snap := staticSnapshot{{Path: "/vs/a", ID: "a", Peaks: model.PeakMetrics{CPS: 3}}}

	s, err := New(cfg, testMeta(), snap)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Persist(model.RoundTotals{Timestamp: time.Now(), LBCount: 1, VSCount: 1, CPS: 3}))
	}

	assert.Len(t, readCSV(t, filepath.Join(dir, cfg.TotalsFile)), 4)

	report, err := os.ReadFile(filepath.Join(dir, cfg.PeakFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), `"virtual_server_path":"/vs/a"`)
	assert.Contains(t, string(report), "cps=3 ")
}

func TestSinkOpenFailure(t *testing.T) {
	cfg := &config.OutputConfig{Dir: filepath.Join(t.TempDir(), "missing"), TotalsFile: "t.csv", PeakFile: "p.txt"}
	_, err := New(cfg, testMeta(), staticSnapshot{})
	assert.Error(t, err)
}
