package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/services"
)

// --- mock service ---

type mockAnalyticsService struct {
	summaryFn           func(ctx context.Context, userID string, r aggregate.DateRange) (aggregate.Summary, error)
	categoryBreakdownFn func(ctx context.Context, userID string, t models.TransactionType, r aggregate.DateRange) ([]aggregate.CategoryTotal, error)
	monthlyTrendFn      func(ctx context.Context, userID string, r aggregate.DateRange) ([]aggregate.MonthlyTotal, error)
	monthlySeriesFn     func(ctx context.Context, userID string, now time.Time, months int) ([]aggregate.MonthBucket, error)
	overviewFn          func(ctx context.Context, userID string, r aggregate.DateRange) (*services.Overview, error)
}

func (m *mockAnalyticsService) Summary(ctx context.Context, userID string, r aggregate.DateRange) (aggregate.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, userID, r)
	}
	return aggregate.Summary{}, nil
}

func (m *mockAnalyticsService) CategoryBreakdown(ctx context.Context, userID string, t models.TransactionType, r aggregate.DateRange) ([]aggregate.CategoryTotal, error) {
	if m.categoryBreakdownFn != nil {
		return m.categoryBreakdownFn(ctx, userID, t, r)
	}
	return []aggregate.CategoryTotal{}, nil
}

func (m *mockAnalyticsService) MonthlyTrend(ctx context.Context, userID string, r aggregate.DateRange) ([]aggregate.MonthlyTotal, error) {
	if m.monthlyTrendFn != nil {
		return m.monthlyTrendFn(ctx, userID, r)
	}
	return []aggregate.MonthlyTotal{}, nil
}

func (m *mockAnalyticsService) MonthlySeries(ctx context.Context, userID string, now time.Time, months int) ([]aggregate.MonthBucket, error) {
	if m.monthlySeriesFn != nil {
		return m.monthlySeriesFn(ctx, userID, now, months)
	}
	return []aggregate.MonthBucket{}, nil
}

func (m *mockAnalyticsService) Overview(ctx context.Context, userID string, r aggregate.DateRange) (*services.Overview, error) {
	if m.overviewFn != nil {
		return m.overviewFn(ctx, userID, r)
	}
	return &services.Overview{}, nil
}

// --- router setup ---

func setupAnalyticsRouter(handler *AnalyticsHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/transactions/summary", handler.GetSummary)
	auth.GET("/transactions/categories", handler.GetCategoryBreakdown)
	auth.GET("/transactions/trend", handler.GetMonthlyTrend)
	auth.GET("/transactions/series", handler.GetMonthlySeries)
	auth.GET("/transactions/analytics", handler.GetOverview)
	return r
}

// --- tests ---

func TestAnalyticsHandler_GetSummary(t *testing.T) {
	t.Run("returns 200 with totals", func(t *testing.T) {
		var gotUser string
		var gotRange aggregate.DateRange
		svc := &mockAnalyticsService{
			summaryFn: func(_ context.Context, userID string, r aggregate.DateRange) (aggregate.Summary, error) {
				gotUser, gotRange = userID, r
				return aggregate.NewSummary(1000, 50), nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/summary?start_date=2024-01-01T00:00:00Z", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotUser != testUserID {
			t.Errorf("expected owner %s, got %s", testUserID, gotUser)
		}
		if gotRange.Start == nil || gotRange.End != nil {
			t.Errorf("expected open-ended range, got %+v", gotRange)
		}
		result := parseJSON(t, rec)
		if result["income"].(float64) != 1000 || result["expenses"].(float64) != 50 || result["balance"].(float64) != 950 {
			t.Errorf("unexpected summary: %v", result)
		}
	})

	t.Run("returns 400 on inverted range", func(t *testing.T) {
		called := false
		svc := &mockAnalyticsService{
			summaryFn: func(_ context.Context, _ string, _ aggregate.DateRange) (aggregate.Summary, error) {
				called = true
				return aggregate.Summary{}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/summary?start_date=2024-02-01&end_date=2024-01-01", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_DATE_RANGE")
		if called {
			t.Error("service must not be reached with an inverted range")
		}
	})

	t.Run("returns 400 on malformed date", func(t *testing.T) {
		r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/transactions/summary?end_date=yesterday", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "INVALID_INPUT")
		fields := result["error"].(map[string]interface{})["fields"].(map[string]interface{})
		if fields["end_date"] == nil {
			t.Errorf("expected end_date field message, got %v", fields)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		svc := &mockAnalyticsService{
			summaryFn: func(_ context.Context, _ string, _ aggregate.DateRange) (aggregate.Summary, error) {
				return aggregate.Summary{}, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("db down"))
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/summary", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestAnalyticsHandler_GetCategoryBreakdown(t *testing.T) {
	t.Run("defaults to expense", func(t *testing.T) {
		var gotType models.TransactionType
		svc := &mockAnalyticsService{
			categoryBreakdownFn: func(_ context.Context, _ string, typ models.TransactionType, _ aggregate.DateRange) ([]aggregate.CategoryTotal, error) {
				gotType = typ
				return []aggregate.CategoryTotal{{Category: "Food", Total: 50, Count: 1}}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/categories", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotType != models.TransactionTypeExpense {
			t.Errorf("expected expense default, got %q", gotType)
		}
		rows := parseJSONArray(t, rec)
		if len(rows) != 1 || rows[0].(map[string]interface{})["category"] != "Food" {
			t.Errorf("unexpected breakdown: %v", rows)
		}
	})

	t.Run("accepts income", func(t *testing.T) {
		var gotType models.TransactionType
		svc := &mockAnalyticsService{
			categoryBreakdownFn: func(_ context.Context, _ string, typ models.TransactionType, _ aggregate.DateRange) ([]aggregate.CategoryTotal, error) {
				gotType = typ
				return []aggregate.CategoryTotal{}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/categories?type=income", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotType != models.TransactionTypeIncome {
			t.Errorf("expected income, got %q", gotType)
		}
		if rows := parseJSONArray(t, rec); len(rows) != 0 {
			t.Errorf("expected empty array, got %v", rows)
		}
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/transactions/categories?type=transfer", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_TRANSACTION_TYPE")
	})
}

func TestAnalyticsHandler_GetMonthlyTrend(t *testing.T) {
	svc := &mockAnalyticsService{
		monthlyTrendFn: func(_ context.Context, _ string, _ aggregate.DateRange) ([]aggregate.MonthlyTotal, error) {
			return []aggregate.MonthlyTotal{
				{Year: 2024, Month: 1, Type: models.TransactionTypeIncome, Total: 1000},
				{Year: 2024, Month: 1, Type: models.TransactionTypeExpense, Total: 50},
			}, nil
		},
	}
	r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

	rec := doRequest(r, "GET", "/transactions/trend", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows := parseJSONArray(t, rec)
	if len(rows) != 2 || rows[0].(map[string]interface{})["type"] != "income" {
		t.Errorf("unexpected trend: %v", rows)
	}
}

func TestAnalyticsHandler_GetMonthlySeries(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("defaults to six months at the current time", func(t *testing.T) {
		var gotNow time.Time
		var gotMonths int
		svc := &mockAnalyticsService{
			monthlySeriesFn: func(_ context.Context, _ string, now time.Time, months int) ([]aggregate.MonthBucket, error) {
				gotNow, gotMonths = now, months
				return aggregate.DenseSeries(nil, now, months), nil
			},
		}
		handler := NewAnalyticsHandler(svc)
		handler.now = func() time.Time { return fixed }
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/transactions/series", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotMonths != 6 || !gotNow.Equal(fixed) {
			t.Errorf("expected 6 months at %v, got %d at %v", fixed, gotMonths, gotNow)
		}
		rows := parseJSONArray(t, rec)
		if len(rows) != 6 {
			t.Fatalf("expected 6 buckets, got %d", len(rows))
		}
		last := rows[5].(map[string]interface{})
		if last["year"].(float64) != 2024 || last["month"].(float64) != 3 {
			t.Errorf("expected last bucket 2024-03, got %v", last)
		}
	})

	t.Run("returns 400 on non-numeric months", func(t *testing.T) {
		r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/transactions/series?months=six", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("surfaces out-of-range months from the service", func(t *testing.T) {
		svc := &mockAnalyticsService{
			monthlySeriesFn: func(_ context.Context, _ string, _ time.Time, _ int) ([]aggregate.MonthBucket, error) {
				return nil, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input", map[string]string{"months": "must be between 1 and 36"})
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/transactions/series?months=100", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAnalyticsHandler_GetOverview(t *testing.T) {
	svc := &mockAnalyticsService{
		overviewFn: func(_ context.Context, _ string, _ aggregate.DateRange) (*services.Overview, error) {
			return &services.Overview{
				Totals:            aggregate.NewSummary(1000, 80),
				IncomeCategories:  []aggregate.CategoryTotal{{Category: "Salary", Total: 1000, Count: 1}},
				ExpenseCategories: []aggregate.CategoryTotal{{Category: "Food", Total: 80, Count: 2}},
				MonthlyTrends:     []aggregate.MonthlyTotal{},
			}, nil
		},
	}
	r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

	rec := doRequest(r, "GET", "/transactions/analytics", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	totals := result["totals"].(map[string]interface{})
	if totals["balance"].(float64) != 920 {
		t.Errorf("expected balance 920, got %v", totals["balance"])
	}
	if trends, ok := result["monthly_trends"].([]interface{}); !ok || len(trends) != 0 {
		t.Errorf("expected empty trend array, got %v", result["monthly_trends"])
	}
}
