package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawmarket/backend/internal/application/report"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
)

// RevenueHandler serves the platform revenue rollups. Admin only.
type RevenueHandler struct {
	BaseHandler
	revenueService *report.RevenueService
}

// NewRevenueHandler creates a new RevenueHandler
func NewRevenueHandler(revenueService *report.RevenueService) *RevenueHandler {
	return &RevenueHandler{
		revenueService: revenueService,
	}
}

// revenueRangeQuery carries the from/to bounds of a range query
type revenueRangeQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

// Get godoc
// @ID           getRevenuePeriod
// @Summary      Get the revenue summary of one period
// @Description  Periods that saw no activity read as all-zero summaries; the key "current" resolves to the period containing now
// @Tags         revenue
// @Produce      json
// @Param        periodType path string true "Granularity (daily, weekly, monthly)"
// @Param        key path string true "Period key (2026-03-14, 2026-W11, 2026-03 or current)"
// @Success      200 {object} APIResponse[ledger.RevenueSummary]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /revenue/{periodType}/{key} [get]
func (h *RevenueHandler) Get(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	periodType := ledger.PeriodType(c.Param("periodType"))
	key := c.Param("key")

	var (
		resp *ledger.RevenueSummary
		err  error
	)
	if key == "current" {
		resp, err = h.revenueService.Current(c.Request.Context(), periodType)
	} else {
		resp, err = h.revenueService.Get(c.Request.Context(), periodType, key)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Range godoc
// @ID           getRevenueRange
// @Summary      List revenue summaries between two dates
// @Description  Returns the touched periods between from and to, inclusive, at one granularity
// @Tags         revenue
// @Produce      json
// @Param        periodType path string true "Granularity (daily, weekly, monthly)"
// @Param        from query string true "Range start (RFC 3339 date)"
// @Param        to query string true "Range end (RFC 3339 date)"
// @Success      200 {object} APIResponse[[]ledger.RevenueSummary]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /revenue/{periodType} [get]
func (h *RevenueHandler) Range(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	periodType := ledger.PeriodType(c.Param("periodType"))

	var q revenueRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	from, err := parseDate(q.From)
	if err != nil {
		h.BadRequest(c, "Invalid from date")
		return
	}
	to, err := parseDate(q.To)
	if err != nil {
		h.BadRequest(c, "Invalid to date")
		return
	}

	resp, err := h.revenueService.Range(c.Request.Context(), periodType, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// parseDate accepts a bare date or a full RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// requireAdmin aborts with 403 unless the caller is an admin
func (h *RevenueHandler) requireAdmin(c *gin.Context) bool {
	if getRole(c) != identity.RoleAdmin {
		h.Forbidden(c, "Admin role required")
		return false
	}
	return true
}

// RegisterRoutes registers all revenue routes
func (h *RevenueHandler) RegisterRoutes(rg *gin.RouterGroup) {
	revenue := rg.Group("/revenue")
	{
		revenue.GET("/:periodType", h.Range)
		revenue.GET("/:periodType/:key", h.Get)
	}
}
