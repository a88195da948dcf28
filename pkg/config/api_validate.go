package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate NSX 接口配置校验
// URL 必须为 http/https 且不带路径（接口路径由客户端拼接）
// 启用限速时突发数至少为 1，否则令牌桶永远取不到令牌
func (a *APIConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}

	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("api.url invalid, got %s: %w", a.URL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("api.url scheme must be http or https, got %q", u.Scheme)
	}
	if strings.Trim(u.Path, "/") != "" {
		return fmt.Errorf("api.url must not contain a path, got %q", u.Path)
	}

	if a.RequestsPerSecond > 0 && a.Burst < 1 {
		return fmt.Errorf("api.burst must be >= 1 when api.requests_per_second is set, got %d", a.Burst)
	}
	return nil
}
