package cache

import (
	"net/http"

	"github.com/KOMKZ/yogan-shield/errcode"
)

// ModuleCode cache error module code
const ModuleCode = 70

func cacheErr(code int, key, msg string, status int) *errcode.LayeredError {
	return errcode.Register(errcode.New(ModuleCode, code, "cache", "error.cache."+key, msg, status))
}

var (
	// ErrCacheMiss 条目不存在或已过期；store 层的信号，不会返回给调用方
	ErrCacheMiss = cacheErr(1, "miss", "cache miss", http.StatusOK)

	ErrSerialize   = cacheErr(4, "serialize", "cache value could not be encoded", http.StatusInternalServerError)
	ErrDeserialize = cacheErr(5, "deserialize", "cached entry could not be decoded", http.StatusInternalServerError)

	// store 读写失败，Manager 只记日志后降级为未命中
	ErrStoreGet    = cacheErr(6, "store_get", "cache store read failed", http.StatusServiceUnavailable)
	ErrStoreSet    = cacheErr(7, "store_set", "cache store write failed", http.StatusServiceUnavailable)
	ErrStoreDelete = cacheErr(8, "store_delete", "cache store delete failed", http.StatusServiceUnavailable)
	ErrStoreStats  = cacheErr(11, "store_stats", "cache stats update failed", http.StatusServiceUnavailable)

	// ErrInvalidKey 租户或命名空间不能作为 key 段
	ErrInvalidKey = cacheErr(12, "invalid_key", "invalid cache key segment", http.StatusBadRequest)

	ErrConfigInvalid = cacheErr(9, "config_invalid", "invalid cache config", http.StatusInternalServerError)
)
