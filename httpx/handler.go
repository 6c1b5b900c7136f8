package httpx

import (
	"github.com/KOMKZ/yogan-shield/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc typed handler: Req is bound from uri/form/json tags, Resp is the data of the envelope
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap adapts a typed handler to gin.
//
// The request is parsed with Parse and, when *Req implements validator.Validatable,
// validated (failures are 400 with per-field details). Errors go through HandleError.
// A handler that already wrote the response is left alone.
func Wrap[Req any, Resp any](handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			AbortWithError(c, err)
			return
		}

		if v, ok := any(&req).(validator.Validatable); ok {
			if err := validator.ValidateRequest(v); err != nil {
				AbortWithError(c, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if c.Writer.Written() {
			return
		}
		if resp == nil {
			OkJson(c, nil)
			return
		}
		OkJson(c, resp)
	}
}
