package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/services"
)

const defaultSeriesMonths = 6

// AnalyticsHandler serves read-only aggregates over the user's transactions
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
	now              func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService, now: time.Now}
}

// GetSummary handles the income/expense/balance summary
// @Summary     Get summary
// @Description Total income, total expenses and balance for an optional date range
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} aggregate.Summary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := parseDateRange(c, "start_date", "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), userID, r)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetCategoryBreakdown handles per-category totals for one transaction type
// @Summary     Get category breakdown
// @Description Totals and counts per category label, largest first
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       type query string false "income or expense (default expense)"
// @Param       start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array} aggregate.CategoryTotal "Breakdown"
// @Failure     400 {object} ErrorResponse "Invalid type or date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/categories [get]
func (h *AnalyticsHandler) GetCategoryBreakdown(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	t, err := aggregate.ParseType(c.DefaultQuery("type", string(models.TransactionTypeExpense)))
	if err != nil {
		respondWithError(c, apperrors.ErrInvalidTransactionType)
		return
	}

	r, err := parseDateRange(c, "start_date", "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	breakdown, err := h.analyticsService.CategoryBreakdown(c.Request.Context(), userID, t, r)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// GetMonthlyTrend handles the sparse per-month totals
// @Summary     Get monthly trend
// @Description Per-month totals split by type, oldest month first. Months without data are omitted.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array} aggregate.MonthlyTotal "Trend"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/trend [get]
func (h *AnalyticsHandler) GetMonthlyTrend(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := parseDateRange(c, "start_date", "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	trend, err := h.analyticsService.MonthlyTrend(c.Request.Context(), userID, r)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, trend)
}

// GetMonthlySeries handles the dense series ending at the current month
// @Summary     Get monthly series
// @Description Income and expense for each of the last N months, zero-filled
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       months query int false "Number of months (default 6, max 36)"
// @Success     200 {array} aggregate.MonthBucket "Series"
// @Failure     400 {object} ErrorResponse "Invalid months"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/series [get]
func (h *AnalyticsHandler) GetMonthlySeries(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	months := defaultSeriesMonths
	if v := c.Query("months"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			respondWithError(c, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
				map[string]string{"months": "must be an integer"}))
			return
		}
		months = n
	}

	series, err := h.analyticsService.MonthlySeries(c.Request.Context(), userID, h.now(), months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// GetOverview handles the combined analytics view
// @Summary     Get analytics overview
// @Description Totals, income and expense breakdowns and monthly trend in one response
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.Overview "Overview"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/analytics [get]
func (h *AnalyticsHandler) GetOverview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := parseDateRange(c, "start_date", "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	overview, err := h.analyticsService.Overview(c.Request.Context(), userID, r)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}
