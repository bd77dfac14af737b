package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/middleware"
	"budgetbuddy/internal/services"
)

type mockReportService struct {
	sendMonthlyReportsFn func(ctx context.Context, now time.Time) (*services.ReportRun, error)
}

func (m *mockReportService) SendMonthlyReports(ctx context.Context, now time.Time) (*services.ReportRun, error) {
	if m.sendMonthlyReportsFn != nil {
		return m.sendMonthlyReportsFn(ctx, now)
	}
	return &services.ReportRun{}, nil
}

func newRequestWithKey(method, path, key string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set("X-API-Key", key)
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupReportRouter(handler *ReportHandler, apiKey string) *gin.Engine {
	r := gin.New()
	internal := r.Group("/internal", middleware.ServiceKeyMiddleware(apiKey))
	internal.POST("/reports/run", handler.RunMonthlyReports)
	return r
}

func TestReportHandler_RunMonthlyReports(t *testing.T) {
	fixed := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("returns 200 with run summary", func(t *testing.T) {
		var gotNow time.Time
		svc := &mockReportService{
			sendMonthlyReportsFn: func(_ context.Context, now time.Time) (*services.ReportRun, error) {
				gotNow = now
				return &services.ReportRun{Year: 2024, Month: 1, Sent: 3, Failed: 1}, nil
			},
		}
		handler := NewReportHandler(svc)
		handler.now = func() time.Time { return fixed }
		r := setupReportRouter(handler, "service-key")

		rec := serve(r, newRequestWithKey("POST", "/internal/reports/run", "service-key"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotNow.Equal(fixed) {
			t.Errorf("expected now %v, got %v", fixed, gotNow)
		}
		result := parseJSON(t, rec)
		if result["sent"].(float64) != 3 || result["failed"].(float64) != 1 || result["month"].(float64) != 1 {
			t.Errorf("unexpected run: %v", result)
		}
	})

	t.Run("returns 401 without key", func(t *testing.T) {
		called := false
		svc := &mockReportService{
			sendMonthlyReportsFn: func(_ context.Context, _ time.Time) (*services.ReportRun, error) {
				called = true
				return &services.ReportRun{}, nil
			},
		}
		r := setupReportRouter(NewReportHandler(svc), "service-key")

		rec := doRequest(r, "POST", "/internal/reports/run", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if called {
			t.Error("job must not run without a valid key")
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		svc := &mockReportService{
			sendMonthlyReportsFn: func(_ context.Context, _ time.Time) (*services.ReportRun, error) {
				return nil, fmt.Errorf("recipients query failed")
			},
		}
		r := setupReportRouter(NewReportHandler(svc), "service-key")

		rec := serve(r, newRequestWithKey("POST", "/internal/reports/run", "service-key"))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}
