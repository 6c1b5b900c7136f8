package breaker

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
)

// ModuleCode breaker error module code
const ModuleCode = 62

var (
	// ErrCircuitOpen 熔断器打开，调用未执行
	ErrCircuitOpen = errcode.Register(errcode.New(ModuleCode, 1, "breaker", "error.breaker.circuit_open",
		"Circuit breaker is OPEN", http.StatusServiceUnavailable))

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 2, "breaker", "error.breaker.invalid_config",
		"invalid circuit breaker config", http.StatusInternalServerError))

	// ErrNotFound 未注册的熔断器
	ErrNotFound = errcode.Register(errcode.New(ModuleCode, 3, "breaker", "error.breaker.not_found",
		"circuit breaker not found", http.StatusNotFound))
)
