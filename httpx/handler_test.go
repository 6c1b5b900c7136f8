package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/validator"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgeRequest struct {
	Namespace string   `uri:"namespace" json:"-"`
	DryRun    bool     `form:"dryRun" json:"-"`
	Tags      []string `json:"tags"`
}

func (r purgeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tags, validation.Required, validation.Each(validation.Length(1, 16))),
	)
}

type purgeResponse struct {
	Namespace string `json:"namespace"`
	Removed   int    `json:"removed"`
	DryRun    bool   `json:"dryRun"`
}

var errPurgeBusy = errcode.New(70, 9, "cache", "error.cache.busy", "缓存清理进行中", http.StatusConflict)

func purgeEngine(handler HandlerFunc[purgeRequest, purgeResponse]) *gin.Engine {
	engine := gin.New()
	engine.POST("/cache/:namespace/purge", Wrap(handler))
	return engine
}

func purge(engine *gin.Engine, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestWrap_Success(t *testing.T) {
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		return &purgeResponse{Namespace: req.Namespace, Removed: len(req.Tags), DryRun: req.DryRun}, nil
	})

	w := purge(engine, "/cache/summary/purge?dryRun=true", `{"tags":["realtime","date:2024-02-02"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int           `json:"code"`
		Msg  string        `json:"msg"`
		Data purgeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Msg)
	assert.Equal(t, purgeResponse{Namespace: "summary", Removed: 2, DryRun: true}, resp.Data)
}

func TestWrap_ParseError(t *testing.T) {
	called := false
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		called = true
		return &purgeResponse{}, nil
	})

	w := purge(engine, "/cache/summary/purge", `{"tags": "realtime"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrBadRequest.Code(), decodeError(t, w).Code)
	assert.False(t, called)
}

func TestWrap_ValidationError(t *testing.T) {
	called := false
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		called = true
		return &purgeResponse{}, nil
	})

	w := purge(engine, "/cache/summary/purge", `{"tags":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, validator.ErrValidation.Code(), resp.Code)
	assert.Contains(t, resp.Message, "tags")
	assert.Contains(t, resp.Data, "fields")
	assert.False(t, called)
}

func TestWrap_BusinessError(t *testing.T) {
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		return nil, errPurgeBusy.WithData(RetryAfterKey, 5)
	})

	w := purge(engine, "/cache/summary/purge", `{"tags":["realtime"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	resp := decodeError(t, w)
	assert.Equal(t, 700009, resp.Code)
	assert.Equal(t, "缓存清理进行中", resp.Message)
}

func TestWrap_UnknownError(t *testing.T) {
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		return nil, errors.New("redis: i/o timeout")
	})

	w := purge(engine, "/cache/summary/purge", `{"tags":["realtime"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func TestWrap_HandlerWroteResponse(t *testing.T) {
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		c.Status(http.StatusAccepted)
		c.Writer.WriteHeaderNow()
		return nil, nil
	})

	w := purge(engine, "/cache/summary/purge", `{"tags":["realtime"]}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWrap_NilResponse(t *testing.T) {
	engine := purgeEngine(func(c *gin.Context, req *purgeRequest) (*purgeResponse, error) {
		return nil, nil
	})

	w := purge(engine, "/cache/summary/purge", `{"tags":["realtime"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"success"}`, w.Body.String())
}
