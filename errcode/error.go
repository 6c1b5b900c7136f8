// Package errcode 分层错误码，格式 MMBBBB（MM 模块码，BBBB 业务码）
package errcode

import (
	"fmt"
	"maps"
	"net/http"
)

// LayeredError 错误码、HTTP 状态与上下文数据；With* 均返回副本
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]any
	cause      error
}

// New moduleCode 10-99，businessCode 1-9999，httpStatus 缺省 200
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	e := &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: http.StatusOK,
		data:       map[string]any{},
	}
	if len(httpStatus) > 0 {
		e.httpStatus = httpStatus[0]
	}
	return e
}

func (e *LayeredError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *LayeredError) Code() int            { return e.code }
func (e *LayeredError) Module() string       { return e.module }
func (e *LayeredError) MsgKey() string       { return e.msgKey }
func (e *LayeredError) Message() string      { return e.msg }
func (e *LayeredError) HTTPStatus() int      { return e.httpStatus }
func (e *LayeredError) Data() map[string]any { return e.data }
func (e *LayeredError) Unwrap() error        { return e.cause }

// Is 按错误码比较，副本仍能匹配哨兵错误
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	return ok && t.code == e.code
}

func (e *LayeredError) with(mutate func(*LayeredError)) *LayeredError {
	clone := *e
	mutate(&clone)
	return &clone
}

func (e *LayeredError) WithMsg(msg string) *LayeredError {
	return e.with(func(c *LayeredError) { c.msg = msg })
}

func (e *LayeredError) WithMsgf(format string, args ...any) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

func (e *LayeredError) WithData(key string, value any) *LayeredError {
	return e.WithFields(map[string]any{key: value})
}

// WithFields 合并上下文数据，不修改接收者
func (e *LayeredError) WithFields(fields map[string]any) *LayeredError {
	return e.with(func(c *LayeredError) {
		c.data = maps.Clone(e.data)
		if c.data == nil {
			c.data = make(map[string]any, len(fields))
		}
		maps.Copy(c.data, fields)
	})
}

// Wrap cause 为 nil 时原样返回
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	return e.with(func(c *LayeredError) { c.cause = cause })
}

func (e *LayeredError) Wrapf(cause error, format string, args ...any) *LayeredError {
	return e.with(func(c *LayeredError) {
		c.msg = fmt.Sprintf(format, args...)
		c.cause = cause
	})
}

// String 调试输出
func (e *LayeredError) String() string {
	s := fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s", e.code, e.module, e.msg)
	if e.cause != nil {
		s += fmt.Sprintf(", cause:%v", e.cause)
	}
	return s + "}"
}
