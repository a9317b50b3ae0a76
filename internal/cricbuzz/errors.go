package cricbuzz

import (
	"errors"
	"fmt"
)

var (
	ErrDataEmpty       = errors.New("no data available")
	ErrNotSubscribed   = errors.New("not subscribed to this API")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrBadResponse     = errors.New("bad upstream response")
	ErrUpstream        = errors.New("upstream error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotConfigured   = errors.New("RAPIDAPI_KEY is not set")
)

// APIError 上游返回的失败；errors.Is 可按 Err 里的哨兵值分类
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: Error during %s", e.Status, e.Op)
	}
	return e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// outcome 指标 label
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDataEmpty):
		return "empty"
	case errors.Is(err, ErrNotSubscribed):
		return "not_subscribed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

// argError 参数校验失败，文本原样给调用方
type argError string

func (e argError) Error() string        { return string(e) }
func (e argError) Is(target error) bool { return target == ErrInvalidArgument }

func invalid(format string, args ...any) error {
	return argError(fmt.Sprintf(format, args...))
}
