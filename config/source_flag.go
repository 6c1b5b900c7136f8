package config

import (
	"fmt"
	"reflect"
	"strings"
)

// defaultFlagKeys 未打 config 标签的字段按字段名映射
var defaultFlagKeys = map[string]string{
	"Port":      "http.port",
	"Address":   "http.host",
	"RedisAddr": "redis.addr",
	"LogLevel":  "logger.level",
}

// FlagSource 命令行参数结构体
//
// 字段通过 `config:"http.port"` 指定 key，可用逗号给出多个；
// 零值视为未设置，不覆盖低优先级来源。
type FlagSource struct {
	flags    interface{}
	priority int
}

// NewFlagSource 创建参数数据源，flags 为结构体或其指针
func NewFlagSource(flags interface{}, priority int) *FlagSource {
	return &FlagSource{flags: flags, priority: priority}
}

// Name 数据源名称
func (s *FlagSource) Name() string { return "flags" }

// Priority 优先级
func (s *FlagSource) Priority() int { return s.priority }

// Load 读取非零字段
func (s *FlagSource) Load() (map[string]interface{}, error) {
	out := make(map[string]interface{})

	v := reflect.ValueOf(s.flags)
	for v.IsValid() && v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return out, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return out, nil
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("flags must be a struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, value := t.Field(i), v.Field(i)
		if !field.IsExported() || unset(value) {
			continue
		}
		for _, key := range flagKeys(field) {
			out[key] = value.Interface()
		}
	}
	return out, nil
}

func flagKeys(field reflect.StructField) []string {
	tag, ok := field.Tag.Lookup("config")
	if !ok || tag == "" {
		if key, found := defaultFlagKeys[field.Name]; found {
			return []string{key}
		}
		return nil
	}

	var keys []string
	for _, key := range strings.Split(tag, ",") {
		if key = strings.TrimSpace(key); key != "" && key != "-" {
			keys = append(keys, key)
		}
	}
	return keys
}

// unset 零值以及空 slice/map
func unset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
