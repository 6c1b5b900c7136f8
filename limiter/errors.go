package limiter

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
)

// ModuleCode limiter error module code
const ModuleCode = 61

var (
	// ErrLimitExceeded 超过限流阈值
	ErrLimitExceeded = errcode.Register(errcode.New(ModuleCode, 1, "limiter", "error.limiter.limit_exceeded",
		"Rate limit exceeded. Please try again later.", http.StatusTooManyRequests))

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 2, "limiter", "error.limiter.invalid_config",
		"invalid rate limiter config", http.StatusInternalServerError))

	// ErrStoreUnavailable 存储不可用 (only ever logged, decisions fail open)
	ErrStoreUnavailable = errcode.Register(errcode.New(ModuleCode, 3, "limiter", "error.limiter.store_unavailable",
		"rate limit store unavailable", http.StatusServiceUnavailable))
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "limiter config validation failed for field '" + e.Field + "': " + e.Message
	}
	return "limiter config validation failed: " + e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match validation failures
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}
