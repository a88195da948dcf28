package nsx

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport 网络、超时、非 2xx 状态码
	ErrTransport = errors.New("nsx transport error")
	// ErrParse 响应体无法解析或结构不符合预期
	ErrParse = errors.New("nsx parse error")
)

// TransportError 请求未能拿到可用响应
type TransportError struct {
	Op         string
	URL        string
	StatusCode int // 0 表示未收到响应
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError 响应已收到但内容不可用
type ParseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
