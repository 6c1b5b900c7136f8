package httpx

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/gin-gonic/gin"
)

// ErrBadRequest the request could not be decoded (module 1 common, business 1001)
var ErrBadRequest = errcode.Register(errcode.New(
	1, 1001,
	"common", "error.common.bad_request", "请求格式错误",
	http.StatusBadRequest,
))

// Parse binds path params (uri tag), the query string (form tag) and a JSON body
// (json tag) into req, in that order. Each source is bound only when present.
func Parse(c *gin.Context, req interface{}) error {
	if len(c.Params) > 0 {
		if err := c.ShouldBindUri(req); err != nil {
			return ErrBadRequest.Wrapf(err, "路径参数错误")
		}
	}

	if c.Request.URL.RawQuery != "" {
		if err := c.ShouldBindQuery(req); err != nil {
			return ErrBadRequest.Wrapf(err, "查询参数错误")
		}
	}

	// ContentLength is -1 for chunked bodies
	if c.Request.ContentLength != 0 && c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(req); err != nil {
			return ErrBadRequest.Wrapf(err, "请求体不是合法的 JSON")
		}
	}

	return nil
}
