// Package config merges prioritized sources (YAML files, environment, flags)
// into one viper instance components unmarshal their sections from.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader 多来源配置加载器
type Loader struct {
	sources []ConfigSource
	v       *viper.Viper
	files   []string
}

// NewLoader 创建空加载器
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// AddSource 添加来源，Load 时按优先级排序
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load 按优先级从低到高合并所有来源；同一 key 高优先级覆盖低优先级
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	var files []string
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load %s: %w", source.Name(), err)
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			files = append(files, fs.path)
		}
		for k, v := range data {
			merged[k] = v
		}
	}

	v := viper.New()
	for k, val := range nest(merged) {
		v.Set(k, val)
	}
	l.v, l.files = v, files
	return nil
}

func splitKey(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool { return r == '.' })
}

// UnmarshalKey 解码一个配置段；时长接受 "250ms" 形式
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	if err := l.v.UnmarshalKey(key, v); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

// GetString 读取字符串
func (l *Loader) GetString(key string) string { return l.v.GetString(key) }

// GetInt 读取整数
func (l *Loader) GetInt(key string) int { return l.v.GetInt(key) }

// IsSet 配置项是否存在
func (l *Loader) IsSet(key string) bool { return l.v.IsSet(key) }

// AllSettings 合并后的全部配置
func (l *Loader) AllSettings() map[string]interface{} { return l.v.AllSettings() }

// GetLoadedFiles 实际读到内容的配置文件
func (l *Loader) GetLoadedFiles() []string { return l.files }
