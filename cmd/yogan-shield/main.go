// Command yogan-shield 运行弹性网关服务，并提供缓存失效与状态查看的运维命令
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/yogan-shield/application"
)

// 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

const (
	appName          = "yogan-shield"
	defaultConfigDir = "./configs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "限流、熔断、降载与分析缓存服务",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := application.BindAppFlags(root, &application.AppFlags{}); err != nil {
		panic(err)
	}

	root.AddCommand(newServeCmd(), newInvalidateCmd(), newStatsCmd())
	return root
}

// resolve 读取全局参数，返回配置目录与传给配置加载器的参数
func resolve(cmd *cobra.Command) (string, *application.AppFlags, error) {
	flags, err := application.ResolveAppFlags(cmd, appName, defaultConfigDir)
	if err != nil {
		return "", nil, err
	}
	return flags.ConfigDir, flags, nil
}
