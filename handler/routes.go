package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KOMKZ/yogan-shield/httpx"
)

// Register mounts the service routes. Health routes are mounted by the server itself.
//
//	GET  /stats
//	POST /stats/cache/reset
//	GET  /api/v1/analytics/summary
//	POST /api/v1/analytics/invalidate
func Register(r gin.IRouter, st *StatsHandler, an *AnalyticsHandler) {
	if st != nil {
		r.GET("/stats", st.Get)
		r.POST("/stats/cache/reset", st.ResetCache)
	}

	if an != nil {
		v1 := r.Group("/api/v1/analytics")
		v1.GET("/summary", httpx.Wrap(an.Summary))
		v1.POST("/invalidate", httpx.Wrap(an.Invalidate))
	}
}
