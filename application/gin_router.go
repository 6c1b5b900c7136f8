package application

import "github.com/gin-gonic/gin"

// Router 业务路由注册器，在服务监听前调用
// 组件通过 app.GetInjector() 取得，如 do.MustInvoke[*analytics.Service]
type Router interface {
	Register(engine *gin.Engine, app *Application)
}

// RouterFunc 函数式 Router
type RouterFunc func(engine *gin.Engine, app *Application)

// Register implements Router
func (f RouterFunc) Register(engine *gin.Engine, app *Application) { f(engine, app) }

// routeSet 按添加顺序注册，nil 跳过
type routeSet []Router

func (s *routeSet) add(routers ...Router) {
	for _, r := range routers {
		if r != nil {
			*s = append(*s, r)
		}
	}
}

func (s routeSet) register(engine *gin.Engine, app *Application) {
	for _, r := range s {
		r.Register(engine, app)
	}
}
