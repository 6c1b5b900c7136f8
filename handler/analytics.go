// Package handler holds the HTTP endpoints of the shield service: operational
// stats and the analytics summary with its invalidation hook.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/yogan-shield/analytics"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/httpx/types"
	"github.com/KOMKZ/yogan-shield/middleware"
)

// Invalidation scopes accepted by POST /api/v1/analytics/invalidate
const (
	ScopeTenant    = "tenant"
	ScopeTags      = "tags"
	ScopeNamespace = "namespace"
	ScopeDate      = "date"
)

// SummaryRequest GET /api/v1/analytics/summary?metric=visits&startDate=...&endDate=...&filter[region]=eu
type SummaryRequest struct {
	Metric string `form:"metric" json:"metric"`
	types.DateRange
}

// Validate checks date formats; the rest is checked by analytics.Query
func (r SummaryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StartDate, validation.Date(types.DateFormat)),
		validation.Field(&r.EndDate, validation.Date(types.DateFormat)),
	)
}

// InvalidateRequest body of POST /api/v1/analytics/invalidate; the tenant comes from x-tenant-id
type InvalidateRequest struct {
	Scope     string   `json:"scope"`
	Tags      []string `json:"tags"`
	Namespace string   `json:"namespace"`
	Date      string   `json:"date"`
}

// Validate checks the scope and the fields it needs
func (r InvalidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scope, validation.Required,
			validation.In(ScopeTenant, ScopeTags, ScopeNamespace, ScopeDate)),
		validation.Field(&r.Tags, validation.When(r.Scope == ScopeTags, validation.Required),
			validation.Each(validation.Required, validation.Length(1, 128))),
		validation.Field(&r.Namespace, validation.Match(cache.TenantIDPattern)),
		validation.Field(&r.Date, validation.When(r.Scope == ScopeDate, validation.Required),
			validation.Date(types.DateFormat)),
	)
}

// InvalidateResponse entries removed by one invalidation
type InvalidateResponse struct {
	Scope   string `json:"scope"`
	Removed int64  `json:"removed"`
}

// AnalyticsHandler summary read path and write path invalidation hook
type AnalyticsHandler struct {
	svc *analytics.Service
}

// NewAnalyticsHandler creates the handler
func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Summary serves a cached or freshly computed summary. A degraded summary is still 200.
func (h *AnalyticsHandler) Summary(c *gin.Context, req *SummaryRequest) (*analytics.Summary, error) {
	dateRange, err := req.CacheRange()
	if err != nil {
		return nil, analytics.ErrInvalidQuery.Wrap(err).WithMsg(err.Error())
	}

	q := analytics.Query{
		TenantID:  middleware.TenantID(c),
		Metric:    req.Metric,
		DateRange: dateRange,
		Filters:   c.QueryMap("filter"),
	}
	if len(q.Filters) == 0 {
		q.Filters = nil
	}

	summary, err := h.svc.Summary(c.Request.Context(), q)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Invalidate drops cached summaries of the calling tenant
func (h *AnalyticsHandler) Invalidate(c *gin.Context, req *InvalidateRequest) (*InvalidateResponse, error) {
	ctx := c.Request.Context()
	tenant := middleware.TenantID(c)
	if err := cache.ValidateScope(tenant); err != nil {
		return nil, analytics.ErrInvalidQuery.Wrap(err).WithMsg(err.Error())
	}

	var removed int64
	switch req.Scope {
	case ScopeTenant:
		removed = h.svc.InvalidateTenant(ctx, tenant)
	case ScopeTags:
		removed = h.svc.InvalidateTags(ctx, tenant, req.Tags...)
	case ScopeNamespace:
		removed = h.svc.InvalidateNamespace(ctx, tenant, req.Namespace)
	case ScopeDate:
		day, err := time.Parse(types.DateFormat, req.Date)
		if err != nil {
			return nil, analytics.ErrInvalidQuery.Wrap(err)
		}
		removed = h.svc.DataChanged(ctx, tenant, day)
	}

	return &InvalidateResponse{Scope: req.Scope, Removed: removed}, nil
}
