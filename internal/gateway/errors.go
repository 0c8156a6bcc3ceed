package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindClient
	KindUnauthorized
	KindServer
	KindApplication
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindClient:
		return "client"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindApplication:
		return "application"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned for every failed backend call. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is an HTTP 401 from the backend.
func IsUnauthorized(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == KindUnauthorized
}

// IsNetwork reports whether err means the backend could not be reached in time.
func IsNetwork(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && (gwErr.Kind == KindNetwork || gwErr.Kind == KindTimeout)
}

// Message returns the user-displayable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

func defaultStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "请求参数错误"
	case http.StatusUnauthorized:
		return "未登录或登录已过期，请重新登录"
	case http.StatusForbidden:
		return "没有权限执行此操作"
	case http.StatusNotFound:
		return "请求的资源不存在"
	case http.StatusInternalServerError:
		return "服务器错误，请稍后重试"
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "服务暂时不可用，请稍后重试"
	default:
		return fmt.Sprintf("请求失败 (%d)", status)
	}
}

const (
	msgNetwork = "网络连接失败，请检查网络"
	msgTimeout = "请求超时，请检查网络连接"
	msgDecode  = "服务器返回的数据格式错误"
)
