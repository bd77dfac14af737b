package services

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/notify"
)

// reportService builds and delivers the monthly summaries.
type reportService struct {
	users       UserServicer
	analytics   AnalyticsServicer
	notifier    notify.Notifier
	concurrency int
}

// NewReportService creates a new ReportServicer. concurrency bounds how many
// users are processed at once.
func NewReportService(users UserServicer, analytics AnalyticsServicer, notifier notify.Notifier, concurrency int) ReportServicer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &reportService{
		users:       users,
		analytics:   analytics,
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// PreviousMonth returns the UTC calendar month before the one containing now.
func PreviousMonth(now time.Time) aggregate.DateRange {
	y, m := aggregate.MonthOf(now)
	end := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	return aggregate.DateRange{Start: &start, End: &end}
}

// SendMonthlyReports sends the previous month's summary to every opted-in
// user. A failure for one user is logged and counted; only failing to list
// recipients aborts the run.
func (s *reportService) SendMonthlyReports(ctx context.Context, now time.Time) (*ReportRun, error) {
	log := logger.Named("report")

	recipients, err := s.users.ListReportRecipients(ctx)
	if err != nil {
		return nil, err
	}

	period := PreviousMonth(now)
	run := &ReportRun{Year: period.Start.Year(), Month: int(period.Start.Month())}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, user := range recipients {
		user := user
		g.Go(func() error {
			if err := s.sendOne(gctx, user, period); err != nil {
				failed.Add(1)
				log.Errorw("monthly report failed", "user_id", user.ID, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	run.Sent = int(sent.Load())
	run.Failed = int(failed.Load())
	log.Infow("monthly reports finished",
		"year", run.Year,
		"month", run.Month,
		"sent", run.Sent,
		"failed", run.Failed,
	)
	return run, ctx.Err()
}

func (s *reportService) sendOne(ctx context.Context, user models.User, period aggregate.DateRange) error {
	summary, err := s.analytics.Summary(ctx, user.ID, period)
	if err != nil {
		return err
	}
	categories, err := s.analytics.CategoryBreakdown(ctx, user.ID, models.TransactionTypeExpense, period)
	if err != nil {
		return err
	}

	return s.notifier.SendMonthlyReport(ctx, notify.MonthlyReport{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Year:       period.Start.Year(),
		Month:      int(period.Start.Month()),
		Summary:    summary,
		Categories: categories,
	})
}
