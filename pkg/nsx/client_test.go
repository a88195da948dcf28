package nsx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lb-peak-collector/pkg/config"
)

const (
	testUser = "audit"
	testPass = "secret"
)

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		u, p, ok := r.BasicAuth()
		if !ok || u != testUser || p != testPass {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(url string, mutate ...func(c *config.APIConfig)) *Client {
	cfg := &config.APIConfig{
		URL:                url,
		Username:           testUser,
		Password:           testPass,
		InsecureSkipVerify: true,
		Timeout:            2 * time.Second,
		StatisticsSource:   "realtime",
	}
	for _, m := range mutate {
		m(cfg)
	}
	return NewClient(cfg, nil)
}

func TestListLoadBalancers(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/policy/api/v1/infra/lb-services": `{"results":[{"id":"lb-a"},{"id":"lb-b"}],"result_count":2}`,
	})

	refs, err := newTestClient(srv.URL).ListLoadBalancers(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "lb-a", refs[0].ID)
	assert.Equal(t, "lb-b", refs[1].ID)
}

func TestListLoadBalancersErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		target error
	}{
		{"missing results", `{"result_count":0}`, ErrParse},
		{"missing id", `{"results":[{"display_name":"x"}]}`, ErrParse},
		{"malformed", `{"results":[`, ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, map[string]string{
				"/policy/api/v1/infra/lb-services": tt.body,
			})
			_, err := newTestClient(srv.URL).ListLoadBalancers(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.False(t, errors.Is(err, ErrTransport))
		})
	}
}

func TestTransportErrors(t *testing.T) {
	t.Run("bad credentials", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		c := newTestClient(srv.URL, func(c *config.APIConfig) { c.Password = "wrong" })

		_, err := c.ListLoadBalancers(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransport))

		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
		assert.Equal(t, OpListLoadBalancers, te.Op)
	})

	t.Run("certificate verification enabled", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		c := newTestClient(srv.URL, func(c *config.APIConfig) { c.InsecureSkipVerify = false })

		_, err := c.ListLoadBalancers(context.Background())
		assert.True(t, errors.Is(err, ErrTransport))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		url := srv.URL
		srv.Close()

		_, err := newTestClient(url).ListLoadBalancers(context.Background())
		assert.True(t, errors.Is(err, ErrTransport))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(srv.URL).ListLoadBalancers(ctx)
		assert.True(t, errors.Is(err, ErrTransport))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestGetLoadBalancerStatistics(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/policy/api/v1/infra/lb-services/lb-a/statistics?source=realtime": `{"results":[{"virtual_servers":[
			{"virtual_server_path":"/infra/lb-virtual-servers/web","statistics":{"bytes_in_rate":100,"bytes_out_rate":50,"http_request_rate":10,"current_session_rate":5}},
			{"virtual_server_path":"/infra/lb-virtual-servers/api","statistics":{"bytes_in_rate":1.5,"bytes_out_rate":0,"http_request_rate":0,"current_session_rate":0}}
		]}]}`,
		"/policy/api/v1/infra/lb-services/lb-empty/statistics?source=realtime":   `{"results":[]}`,
		"/policy/api/v1/infra/lb-services/lb-novs/statistics?source=realtime":    `{"results":[{}]}`,
		"/policy/api/v1/infra/lb-services/lb-idle/statistics?source=realtime":    `{"results":[{"virtual_servers":[]}]}`,
		"/policy/api/v1/infra/lb-services/lb-a/statistics?source=cached":         `{"results":[{"virtual_servers":[]}]}`,
		"/policy/api/v1/infra/lb-services/lb-nopath/statistics?source=realtime": `{"results":[{"virtual_servers":[{"statistics":{}}]}]}`,
		"/policy/api/v1/infra/lb-services/lb-nostats/statistics?source=realtime": `{"results":[{"virtual_servers":[
			{"virtual_server_path":"/infra/lb-virtual-servers/web"}]}]}`,
		"/policy/api/v1/infra/lb-services/lb-norate/statistics?source=realtime": `{"results":[{"virtual_servers":[
			{"virtual_server_path":"/infra/lb-virtual-servers/web","statistics":{"bytes_in_rate":1,"bytes_out_rate":2}}]}]}`,
		"/policy/api/v1/infra/lb-services/lb-nosession/statistics?source=realtime": `{"results":[{"virtual_servers":[
			{"virtual_server_path":"/infra/lb-virtual-servers/web","statistics":{"bytes_in_rate":1,"bytes_out_rate":2,"http_request_rate":0}}]}]}`,
	})
	c := newTestClient(srv.URL)

	stats, err := c.GetLoadBalancerStatistics(context.Background(), "lb-a")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "/infra/lb-virtual-servers/web", stats[0].Path)
	assert.Equal(t, 100.0, stats[0].Statistics.BytesInRate)
	assert.Equal(t, 50.0, stats[0].Statistics.BytesOutRate)
	assert.Equal(t, 10.0, stats[0].Statistics.HTTPRequestRate)
	assert.Equal(t, 5.0, stats[0].Statistics.CurrentSessionRate)
	assert.Equal(t, 1.5, stats[1].Statistics.BytesInRate)

	idle, err := c.GetLoadBalancerStatistics(context.Background(), "lb-idle")
	require.NoError(t, err)
	assert.Empty(t, idle)

	// 速率字段缺失不能按 0 计入汇总
	for _, id := range []string{"lb-empty", "lb-novs", "lb-nopath", "lb-nostats", "lb-norate"} {
		_, err := c.GetLoadBalancerStatistics(context.Background(), id)
		assert.True(t, errors.Is(err, ErrParse), id)
	}

	var perr *ParseError
	_, err = c.GetLoadBalancerStatistics(context.Background(), "lb-norate")
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "http_request_rate")

	noSession, err := c.GetLoadBalancerStatistics(context.Background(), "lb-nosession")
	require.NoError(t, err)
	require.Len(t, noSession, 1)
	assert.Equal(t, 3.0, noSession[0].Statistics.BytesInRate+noSession[0].Statistics.BytesOutRate)
	assert.Zero(t, noSession[0].Statistics.CurrentSessionRate)

	_, err = c.GetLoadBalancerStatistics(context.Background(), "lb-missing")
	assert.True(t, errors.Is(err, ErrTransport))

	cached := newTestClient(srv.URL, func(c *config.APIConfig) { c.StatisticsSource = "cached" })
	_, err = cached.GetLoadBalancerStatistics(context.Background(), "lb-a")
	assert.NoError(t, err)
}

func TestGetVirtualServerConfig(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/policy/api/v1/infra/lb-virtual-servers/web":   `{"id":"web","client_ssl_profile_binding":{"ssl_profile_path":"/infra/lb-client-ssl-profiles/default"}}`,
		"/policy/api/v1/infra/lb-virtual-servers/plain": `{"id":"plain","display_name":"plain"}`,
		"/policy/api/v1/infra/lb-virtual-servers/null":  `{"id":"null","client_ssl_profile_binding":null}`,
		"/policy/api/v1/infra/lb-virtual-servers/noid":  `{"display_name":"noid"}`,
	})
	c := newTestClient(srv.URL)
	ctx := context.Background()

	tlsCfg, err := c.GetVirtualServerConfig(ctx, "/infra/lb-virtual-servers/web")
	require.NoError(t, err)
	assert.Equal(t, "web", tlsCfg.ID)
	assert.True(t, tlsCfg.HasClientTLSProfile)

	plain, err := c.GetVirtualServerConfig(ctx, "/infra/lb-virtual-servers/plain")
	require.NoError(t, err)
	assert.False(t, plain.HasClientTLSProfile)

	// 键存在即视为 TLS，即使值为 null
	nullCfg, err := c.GetVirtualServerConfig(ctx, "/infra/lb-virtual-servers/null")
	require.NoError(t, err)
	assert.True(t, nullCfg.HasClientTLSProfile)

	_, err = c.GetVirtualServerConfig(ctx, "/infra/lb-virtual-servers/noid")
	assert.True(t, errors.Is(err, ErrParse))
}

func TestRequestDurationObserved(t *testing.T) {
	srv, hits := newTestServer(t, map[string]string{
		"/policy/api/v1/infra/lb-services": `{"results":[]}`,
	})
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_api_duration_seconds"}, []string{"op"})
	c := NewClient(&config.APIConfig{
		URL:                srv.URL,
		Username:           testUser,
		Password:           testPass,
		InsecureSkipVerify: true,
		Timeout:            time.Second,
		RequestsPerSecond:  100,
		Burst:              1,
	}, hist)

	for i := 0; i < 3; i++ {
		_, err := c.ListLoadBalancers(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	reg := prometheus.NewRegistry()
	reg.MustRegister(hist)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	require.Len(t, mfs[0].GetMetric(), 1)
	assert.Equal(t, uint64(3), mfs[0].GetMetric()[0].GetHistogram().GetSampleCount())
}
