package config

// 数据源优先级，数值大者覆盖数值小者
const (
	PriorityFile    = 10  // config.yaml
	PriorityEnvFile = 20  // {env}.yaml
	PriorityEnv     = 50  // SHIELD_* 环境变量
	PriorityFlags   = 100 // 命令行参数
)

// ConfigSource 一个配置来源
//
// Load 返回以点号分隔的扁平 key，如 "limiter.max_requests"；
// 来源不存在时返回空 map 而不是错误。
type ConfigSource interface {
	Name() string
	Priority() int
	Load() (map[string]interface{}, error)
}

// flatten 把嵌套 map 展开为点号 key
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok && len(nested) > 0 {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// nest 是 flatten 的逆操作；标量会被同名前缀的子树覆盖
func nest(flat map[string]interface{}) map[string]interface{} {
	root := make(map[string]interface{})
	for key, v := range flat {
		parts := splitKey(key)
		if len(parts) == 0 {
			continue
		}
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return root
}
