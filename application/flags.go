package application

import (
	"os"
	"strconv"
	"strings"

	"github.com/KOMKZ/yogan-shield/config"
	"github.com/KOMKZ/yogan-shield/flagx"
	"github.com/spf13/cobra"
)

// AppFlags 全局命令行参数
// 未打 config 标签的字段由 config.FlagSource 按字段名映射（Port → http.port 等）
type AppFlags struct {
	ConfigDir string `flag:"config-dir,c" usage:"配置目录（默认读取 {PREFIX}_CONFIG_DIR）"`
	Env       string `flag:"env,e" usage:"运行环境 dev/test/prod（默认读取 {PREFIX}_ENV）"`
	Port      int    `flag:"port,p" usage:"HTTP 端口（0 表示使用配置文件）"`
	Address   string `flag:"address" usage:"HTTP 监听地址（空表示使用配置文件）"`
	RedisAddr string `flag:"redis-addr" usage:"Redis 地址（空表示使用配置文件）"`
	LogLevel  string `flag:"log-level" usage:"日志级别 debug/info/warn/error"`
}

// BindAppFlags 在 cmd 上注册全局参数（子命令继承）
func BindAppFlags(cmd *cobra.Command, flags *AppFlags) error {
	return flagx.BindPersistentFlags(cmd, flags)
}

// ResolveAppFlags 读取参数并以环境变量补齐未给出的值
//
// 优先级：命令行 > {PREFIX}_CONFIG_DIR / {PREFIX}_ENV / {PREFIX}_PORT / {PREFIX}_ADDRESS > defaultConfigDir。
// 给出 env 时写回 SHIELD_ENV，供 config.Loader 选择环境文件。
func ResolveAppFlags(cmd *cobra.Command, prefix, defaultConfigDir string) (*AppFlags, error) {
	var flags AppFlags
	if err := flagx.ParseFlags(cmd, &flags); err != nil {
		return nil, err
	}

	envPrefix := strings.ToUpper(strings.ReplaceAll(prefix, "-", "_"))
	if flags.ConfigDir == "" {
		flags.ConfigDir = os.Getenv(envPrefix + "_CONFIG_DIR")
	}
	if flags.ConfigDir == "" {
		flags.ConfigDir = defaultConfigDir
	}
	if flags.Env == "" {
		flags.Env = os.Getenv(envPrefix + "_ENV")
	}
	if flags.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv(envPrefix + "_PORT")); err == nil {
			flags.Port = port
		}
	}
	if flags.Address == "" {
		flags.Address = os.Getenv(envPrefix + "_ADDRESS")
	}

	if flags.Env != "" {
		if err := os.Setenv(config.DefaultEnvPrefix+"_ENV", flags.Env); err != nil {
			return nil, err
		}
	}
	return &flags, nil
}
