package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/httpx"
	"github.com/KOMKZ/yogan-shield/stats"
)

// StatsHandler operational snapshot endpoints
type StatsHandler struct {
	collector *stats.Collector
	cache     *cache.Manager
}

// NewStatsHandler creates the handler; cm may be nil when no reset is offered
func NewStatsHandler(collector *stats.Collector, cm *cache.Manager) *StatsHandler {
	return &StatsHandler{collector: collector, cache: cm}
}

// Get GET /stats → {cache, circuitBreaker, load}. Never fails: unreachable figures stay zero.
func (h *StatsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.collector.Collect(c.Request.Context()))
}

// ResetCache POST /stats/cache/reset zeroes the fleet wide hit/miss counters
func (h *StatsHandler) ResetCache(c *gin.Context) {
	if h.cache == nil {
		httpx.NotFoundJson(c, "cache stats are not available")
		return
	}
	h.cache.ResetStats(c.Request.Context())
	httpx.OkJson(c, h.cache.GetStats(c.Request.Context()))
}
