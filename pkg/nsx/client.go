// Package nsx NSX-T Policy API 只读客户端（Basic Auth，可关闭证书校验）
package nsx

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/model"
)

const (
	apiPrefix        = "/policy/api/v1"
	lbServicesPath   = apiPrefix + "/infra/lb-services"
	maxErrorBodySize = 512

	OpListLoadBalancers   = "list_lb_services"
	OpGetStatistics       = "get_lb_statistics"
	OpGetVirtualServerCfg = "get_virtual_server"
)

// Client 所有请求共享同一个 http.Client
type Client struct {
	baseURL         string
	username        string
	password        string
	source          string
	httpClient      *http.Client
	limiter         *rate.Limiter // nil 表示不限速
	requestDuration *prometheus.HistogramVec
}

// NewClient 创建客户端，requestDuration 可为 nil
func NewClient(cfg *config.APIConfig, requestDuration *prometheus.HistogramVec) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	source := cfg.StatisticsSource
	if source == "" {
		source = "realtime"
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.URL, "/"),
		username:        cfg.Username,
		password:        cfg.Password,
		source:          source,
		httpClient:      &http.Client{Timeout: cfg.Timeout, Transport: transport},
		limiter:         limiter,
		requestDuration: requestDuration,
	}
}

type lbServiceList struct {
	Results *[]struct {
		ID string `json:"id"`
	} `json:"results"`
}

// ListLoadBalancers GET /policy/api/v1/infra/lb-services
func (c *Client) ListLoadBalancers(ctx context.Context) ([]model.LoadBalancerRef, error) {
	var body lbServiceList
	if err := c.getJSON(ctx, OpListLoadBalancers, lbServicesPath, nil, &body); err != nil {
		return nil, err
	}
	if body.Results == nil {
		return nil, &ParseError{Op: OpListLoadBalancers, Reason: "missing results"}
	}

	refs := make([]model.LoadBalancerRef, 0, len(*body.Results))
	for i, r := range *body.Results {
		if r.ID == "" {
			return nil, &ParseError{Op: OpListLoadBalancers, Reason: fmt.Sprintf("results[%d] has no id", i)}
		}
		refs = append(refs, model.LoadBalancerRef{ID: r.ID})
	}
	return refs, nil
}

// wireRates 指针字段用于区分缺失与 0
// current_session_rate 只参与 TLS 服务的 tps，缺失按 0 处理
type wireRates struct {
	BytesInRate        *float64 `json:"bytes_in_rate"`
	BytesOutRate       *float64 `json:"bytes_out_rate"`
	HTTPRequestRate    *float64 `json:"http_request_rate"`
	CurrentSessionRate float64  `json:"current_session_rate"`
}

type wireVirtualServer struct {
	Path       string     `json:"virtual_server_path"`
	Statistics *wireRates `json:"statistics"`
}

type lbStatistics struct {
	Results []struct {
		VirtualServers *[]wireVirtualServer `json:"virtual_servers"`
	} `json:"results"`
}

// toStats 校验必需字段后转换为模型
func (w wireVirtualServer) toStats() (model.VirtualServerStats, string) {
	if w.Path == "" {
		return model.VirtualServerStats{}, "has no virtual_server_path"
	}
	if w.Statistics == nil {
		return model.VirtualServerStats{}, "has no statistics"
	}
	r := w.Statistics
	switch {
	case r.BytesInRate == nil:
		return model.VirtualServerStats{}, "statistics has no bytes_in_rate"
	case r.BytesOutRate == nil:
		return model.VirtualServerStats{}, "statistics has no bytes_out_rate"
	case r.HTTPRequestRate == nil:
		return model.VirtualServerStats{}, "statistics has no http_request_rate"
	}
	return model.VirtualServerStats{
		Path: w.Path,
		Statistics: model.VirtualServerRates{
			BytesInRate:        *r.BytesInRate,
			BytesOutRate:       *r.BytesOutRate,
			HTTPRequestRate:    *r.HTTPRequestRate,
			CurrentSessionRate: r.CurrentSessionRate,
		},
	}, ""
}

// GetLoadBalancerStatistics GET .../lb-services/<id>/statistics?source=realtime
// 只取 results[0].virtual_servers
func (c *Client) GetLoadBalancerStatistics(ctx context.Context, lbID string) ([]model.VirtualServerStats, error) {
	path := lbServicesPath + "/" + url.PathEscape(lbID) + "/statistics"
	query := url.Values{"source": []string{c.source}}

	var body lbStatistics
	if err := c.getJSON(ctx, OpGetStatistics, path, query, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, &ParseError{Op: OpGetStatistics, Reason: fmt.Sprintf("lb %s: empty results", lbID)}
	}
	vs := body.Results[0].VirtualServers
	if vs == nil {
		return nil, &ParseError{Op: OpGetStatistics, Reason: fmt.Sprintf("lb %s: missing virtual_servers", lbID)}
	}
	stats := make([]model.VirtualServerStats, 0, len(*vs))
	for i, w := range *vs {
		st, missing := w.toStats()
		if missing != "" {
			return nil, &ParseError{Op: OpGetStatistics, Reason: fmt.Sprintf("lb %s: virtual_servers[%d] %s", lbID, i, missing)}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

type virtualServer struct {
	ID string `json:"id"`
	// 只关心键是否存在，值可以是 null
	ClientSSLProfileBinding json.RawMessage `json:"client_ssl_profile_binding"`
}

// GetVirtualServerConfig GET /policy/api/v1<path>
func (c *Client) GetVirtualServerConfig(ctx context.Context, path string) (model.VirtualServerConfig, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body virtualServer
	if err := c.getJSON(ctx, OpGetVirtualServerCfg, apiPrefix+path, nil, &body); err != nil {
		return model.VirtualServerConfig{}, err
	}
	if body.ID == "" {
		return model.VirtualServerConfig{}, &ParseError{Op: OpGetVirtualServerCfg, Reason: fmt.Sprintf("%s: missing id", path)}
	}
	return model.VirtualServerConfig{
		ID:                  body.ID,
		HasClientTLSProfile: len(body.ClientSSLProfileBinding) > 0,
	}, nil
}

// getJSON 限速 -> GET -> 状态码检查 -> 解码
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, URL: u, Err: err}
		}
	}

	start := time.Now()
	defer func() {
		if c.requestDuration != nil {
			c.requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	logger.Debug("nsx request", zap.String("op", op), zap.String("url", u))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &TransportError{
			Op:         op,
			URL:        u,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Op: op, Reason: "decode body", Err: err}
	}
	return nil
}
