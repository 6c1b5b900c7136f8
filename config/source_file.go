package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// FileSource 单个 YAML 文件；文件不存在视为空
type FileSource struct {
	path     string
	priority int
}

// NewFileSource 创建文件数据源
func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

// Name 数据源名称
func (s *FileSource) Name() string { return "file:" + s.path }

// Priority 优先级
func (s *FileSource) Priority() int { return s.priority }

// Load 读取并展开文件
func (s *FileSource) Load() (map[string]interface{}, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	out := make(map[string]interface{})
	flatten("", v.AllSettings(), out)
	return out, nil
}
