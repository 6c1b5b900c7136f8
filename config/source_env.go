package config

import (
	"os"
	"strings"
)

// NestingSeparator SHIELD_REDIS__POOL_SIZE -> redis.pool_size
const NestingSeparator = "__"

// EnvSource 读取 {prefix}_ 开头的环境变量，外加显式绑定（无前缀变量名）
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{prefix: prefix, priority: priority, bindings: map[string]string{}}
}

// AddBinding reads key from envKey; a non-empty binding beats the prefix scan
func (s *EnvSource) AddBinding(key, envKey string) { s.bindings[key] = envKey }

func (s *EnvSource) Name() string  { return "env:" + s.prefix }
func (s *EnvSource) Priority() int { return s.priority }

func (s *EnvSource) Load() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if s.prefix != "" {
		for _, kv := range os.Environ() {
			name, value, _ := strings.Cut(kv, "=")
			if rest, ok := strings.CutPrefix(name, s.prefix+"_"); ok && rest != "" {
				out[EnvToKey(rest)] = value
			}
		}
	}
	for key, envKey := range s.bindings {
		if value := os.Getenv(envKey); value != "" {
			out[key] = value
		}
	}
	return out, nil
}

// EnvToKey REDIS__POOL_SIZE -> redis.pool_size
func EnvToKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), NestingSeparator, ".")
}
