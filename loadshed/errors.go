package loadshed

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
)

// ModuleCode loadshed error module code
const ModuleCode = 63

var (
	// ErrOverloaded 系统高负载，低优先级请求被拒绝
	ErrOverloaded = errcode.Register(errcode.New(ModuleCode, 1, "loadshed", "error.loadshed.overloaded",
		"System is under high load. Please try again later.", http.StatusServiceUnavailable))

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 2, "loadshed", "error.loadshed.invalid_config",
		"invalid load shedding config", http.StatusInternalServerError))
)
