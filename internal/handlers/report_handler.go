package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/services"
)

// ReportHandler exposes the monthly report job to internal callers
type ReportHandler struct {
	reportService services.ReportServicer
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService, now: time.Now}
}

// RunMonthlyReports sends the previous month's report to every opted-in user
// @Summary     Run monthly reports
// @Description Trigger the monthly report job immediately. Requires the internal API key.
// @Tags        internal
// @Produce     json
// @Param       X-API-Key header string true "Internal API key"
// @Success     200 {object} services.ReportRun "Run summary"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Failure     503 {object} ErrorResponse "Internal API disabled"
// @Router      /internal/reports/run [post]
func (h *ReportHandler) RunMonthlyReports(c *gin.Context) {
	run, err := h.reportService.SendMonthlyReports(c.Request.Context(), h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("reports").Infow("monthly reports triggered",
		"year", run.Year,
		"month", run.Month,
		"sent", run.Sent,
		"failed", run.Failed,
	)

	c.JSON(http.StatusOK, run)
}
