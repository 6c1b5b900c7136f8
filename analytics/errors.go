package analytics

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
)

// ModuleCode analytics error module code
const ModuleCode = 71

var (
	// ErrInvalidQuery 查询参数无效
	ErrInvalidQuery = errcode.Register(errcode.New(ModuleCode, 1, "analytics", "error.analytics.invalid_query",
		"invalid analytics query", http.StatusBadRequest))

	// ErrUnavailable 计算失败且无法降级
	ErrUnavailable = errcode.Register(errcode.New(ModuleCode, 2, "analytics", "error.analytics.unavailable",
		"analytics temporarily unavailable", http.StatusServiceUnavailable))

	// ErrComputeFailed 计算失败
	ErrComputeFailed = errcode.Register(errcode.New(ModuleCode, 3, "analytics", "error.analytics.compute_failed",
		"analytics computation failed", http.StatusInternalServerError))
)
