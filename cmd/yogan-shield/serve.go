package main

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/KOMKZ/yogan-shield/analytics"
	"github.com/KOMKZ/yogan-shield/application"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/handler"
	"github.com/KOMKZ/yogan-shield/stats"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, flags, err := resolve(cmd)
			if err != nil {
				return err
			}

			app, err := application.New(configDir, "SHIELD", flags)
			if err != nil {
				return err
			}
			app.WithVersion(version)
			app.RegisterRoutes(application.RouterFunc(registerRoutes))
			return app.Run()
		},
	}
}

// registerRoutes 挂载 stats 与 analytics 接口；组件来自 DI 容器
func registerRoutes(engine *gin.Engine, app *application.Application) {
	i := app.GetInjector()
	log := app.MustGetLogger()

	collector, err := do.Invoke[*stats.Collector](i)
	if err != nil {
		log.Error("stats collector unavailable, routes not mounted")
		return
	}
	cm, _ := do.Invoke[*cache.Manager](i)
	svc, err := do.Invoke[*analytics.Service](i)
	if err != nil {
		log.Error("analytics service unavailable, routes not mounted")
		return
	}

	handler.Register(engine, handler.NewStatsHandler(collector, cm), handler.NewAnalyticsHandler(svc))
}
