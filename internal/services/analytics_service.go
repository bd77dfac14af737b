package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
)

// MaxSeriesMonths bounds the width of a dense monthly series.
const MaxSeriesMonths = 36

// analyticsService computes aggregates straight from the transactions table.
// It never writes and holds no state between calls.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// scoped returns a query over userID's transactions inside r.
func (s *analyticsService) scoped(ctx context.Context, userID string, r aggregate.DateRange) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if r.Start != nil {
		q = q.Where("date >= ?", r.Start.UTC())
	}
	if r.End != nil {
		q = q.Where("date <= ?", r.End.UTC())
	}
	return q
}

// Summary sums income and expenses for userID within r.
func (s *analyticsService) Summary(ctx context.Context, userID string, r aggregate.DateRange) (aggregate.Summary, error) {
	if err := r.Validate(); err != nil {
		return aggregate.Summary{}, apperrors.ErrInvalidDateRange
	}

	var rows []struct {
		Type  models.TransactionType
		Total int64
	}
	if err := s.scoped(ctx, userID, r).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Group("type").
		Scan(&rows).Error; err != nil {
		return aggregate.Summary{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var income, expenses int64
	for _, row := range rows {
		switch row.Type {
		case models.TransactionTypeIncome:
			income = row.Total
		case models.TransactionTypeExpense:
			expenses = row.Total
		}
	}
	return aggregate.NewSummary(income, expenses), nil
}

// CategoryBreakdown groups userID's transactions of type t by category label.
func (s *analyticsService) CategoryBreakdown(ctx context.Context, userID string, t models.TransactionType, r aggregate.DateRange) ([]aggregate.CategoryTotal, error) {
	if !t.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if err := r.Validate(); err != nil {
		return nil, apperrors.ErrInvalidDateRange
	}

	var rows []aggregate.CategoryTotal
	if err := s.scoped(ctx, userID, r).
		Select("category, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("type = ?", t).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return aggregate.MergeBreakdown(rows), nil
}

// MonthlyTrend totals userID's transactions per (year, month, type). Month
// extraction differs between postgres and sqlite, so rows are bucketed with
// the shared UTC rules instead of in SQL.
func (s *analyticsService) MonthlyTrend(ctx context.Context, userID string, r aggregate.DateRange) ([]aggregate.MonthlyTotal, error) {
	if err := r.Validate(); err != nil {
		return nil, apperrors.ErrInvalidDateRange
	}

	var rows []models.Transaction
	if err := s.scoped(ctx, userID, r).
		Select("type", "amount", "date").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return aggregate.MonthlyTrend(rows), nil
}

// MonthlySeries returns exactly months buckets ending at the month of now.
func (s *analyticsService) MonthlySeries(ctx context.Context, userID string, now time.Time, months int) ([]aggregate.MonthBucket, error) {
	if months < 1 || months > MaxSeriesMonths {
		return nil, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
			map[string]string{"months": "must be between 1 and 36"})
	}

	trend, err := s.MonthlyTrend(ctx, userID, aggregate.SeriesWindow(now, months))
	if err != nil {
		return nil, err
	}
	return aggregate.DenseSeries(trend, now, months), nil
}

// Overview computes every aggregate for userID and r concurrently. Any
// failing part fails the whole call.
func (s *analyticsService) Overview(ctx context.Context, userID string, r aggregate.DateRange) (*Overview, error) {
	if err := r.Validate(); err != nil {
		return nil, apperrors.ErrInvalidDateRange
	}

	var out Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.Summary(gctx, userID, r)
		out.Totals = summary
		return err
	})
	g.Go(func() error {
		rows, err := s.CategoryBreakdown(gctx, userID, models.TransactionTypeIncome, r)
		out.IncomeCategories = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.CategoryBreakdown(gctx, userID, models.TransactionTypeExpense, r)
		out.ExpenseCategories = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.MonthlyTrend(gctx, userID, r)
		out.MonthlyTrends = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
