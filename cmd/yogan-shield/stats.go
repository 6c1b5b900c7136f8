package main

import (
	"encoding/json"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/KOMKZ/yogan-shield/application"
	"github.com/KOMKZ/yogan-shield/stats"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "打印缓存统计（全实例）与本进程的熔断、负载状态",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, flags, err := resolve(cmd)
			if err != nil {
				return err
			}
			cli, err := application.NewCLI(configDir, "SHIELD", flags)
			if err != nil {
				return err
			}

			return cli.Execute(func(c *application.CLIApplication) error {
				collector, err := do.Invoke[*stats.Collector](c.GetInjector())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(collector.Collect(c.Context()))
			})
		},
	}
}
