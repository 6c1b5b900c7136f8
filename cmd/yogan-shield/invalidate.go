package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/KOMKZ/yogan-shield/analytics"
	"github.com/KOMKZ/yogan-shield/application"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/flagx"
)

// invalidateOptions invalidate 子命令参数
type invalidateOptions struct {
	Tenant    string        `flag:"tenant,t" usage:"租户 ID（必填）" required:"true"`
	Namespace string        `flag:"namespace,n" usage:"只清除该命名空间"`
	Tags      []string      `flag:"tag" usage:"按标签清除，可重复"`
	Timeout   time.Duration `flag:"timeout" default:"30s" usage:"整体超时"`
}

func newInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "清除租户的分析缓存",
		Example: `  yogan-shield invalidate --tenant acme
  yogan-shield invalidate --tenant acme --tag date:2024-02-02 --tag realtime
  yogan-shield invalidate --tenant acme --namespace summary`,
		RunE: runInvalidate,
	}
	if err := flagx.BindFlags(cmd, &invalidateOptions{}); err != nil {
		panic(err)
	}
	return cmd
}

func runInvalidate(cmd *cobra.Command, _ []string) error {
	var opts invalidateOptions
	if err := flagx.ParseFlags(cmd, &opts); err != nil {
		return err
	}
	if opts.Namespace != "" && len(opts.Tags) > 0 {
		return errors.New("--namespace and --tag are mutually exclusive")
	}
	if err := cache.ValidateScope(opts.Tenant); err != nil {
		return fmt.Errorf("--tenant: %w", err)
	}

	configDir, flags, err := resolve(cmd)
	if err != nil {
		return err
	}
	cli, err := application.NewCLI(configDir, "SHIELD", flags)
	if err != nil {
		return err
	}

	return cli.Execute(func(c *application.CLIApplication) error {
		svc, err := do.Invoke[*analytics.Service](c.GetInjector())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context(), opts.Timeout)
		defer cancel()

		scope := "tenant"
		var removed int64
		switch {
		case len(opts.Tags) > 0:
			scope = "tags"
			removed = svc.InvalidateTags(ctx, opts.Tenant, opts.Tags...)
		case opts.Namespace != "":
			scope = "namespace"
			removed = svc.InvalidateNamespace(ctx, opts.Tenant, opts.Namespace)
		default:
			removed = svc.InvalidateTenant(ctx, opts.Tenant)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "tenant=%s scope=%s removed=%d\n", opts.Tenant, scope, removed)
		return nil
	})
}
