// Package validator 提供统一的参数校验和错误转换
package validator

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/KOMKZ/yogan-shield/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrValidation 参数校验失败 (模块码 1 common, 业务码 1010)
var ErrValidation = errcode.Register(errcode.New(
	1, 1010,
	"common", "error.common.validation_failed", "参数校验失败",
	http.StatusBadRequest,
))

// Validatable 可校验接口
type Validatable interface {
	Validate() error
}

// ValidateRequest 通用校验函数
// 将 ozzo-validation 错误转换为 LayeredError
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ConvertValidationError(validationErrs)
	}

	// 其他错误直接返回
	return err
}

// ConvertValidationError 将 ozzo-validation 错误转换为 LayeredError
// 嵌套结构的字段以 a.b 形式展开
func ConvertValidationError(validationErrs validation.Errors) error {
	fields := make(map[string]string)
	flatten("", validationErrs, fields)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}

	return ErrValidation.
		WithMsg(strings.Join(parts, "; ")).
		WithData("fields", fields)
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			flatten(name, nested, out)
			continue
		}
		out[name] = fieldErr.Error()
	}
}
