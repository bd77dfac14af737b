// Package notify delivers monthly summaries to users over email or a
// message broker.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budgetbuddy/internal/aggregate"
)

// MonthlyReport is the previous-month summary sent to one user.
type MonthlyReport struct {
	UserID     string                    `json:"user_id"`
	Email      string                    `json:"email"`
	Name       string                    `json:"name"`
	Year       int                       `json:"year"`
	Month      int                       `json:"month"`
	Summary    aggregate.Summary         `json:"summary"`
	Categories []aggregate.CategoryTotal `json:"expense_categories"`
}

// Period returns the report month formatted as "January 2024".
func (r MonthlyReport) Period() string {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// Notifier delivers a monthly report.
type Notifier interface {
	SendMonthlyReport(ctx context.Context, report MonthlyReport) error
}

// FormatAmount renders minor units as a decimal string with two places.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// RenderText produces the plain-text body of a report.
func RenderText(r MonthlyReport) string {
	var b strings.Builder

	name := r.Name
	if name == "" {
		name = r.Email
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Here is your summary for %s.\n\n", r.Period())
	fmt.Fprintf(&b, "Income:   %s\n", FormatAmount(r.Summary.Income))
	fmt.Fprintf(&b, "Expenses: %s\n", FormatAmount(r.Summary.Expenses))
	fmt.Fprintf(&b, "Balance:  %s\n", FormatAmount(r.Summary.Balance))

	if len(r.Categories) > 0 {
		b.WriteString("\nTop spending categories:\n")
		for i, c := range r.Categories {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %-20s %s (%d)\n", c.Category, FormatAmount(c.Total), c.Count)
		}
	}

	b.WriteString("\nYou can turn these emails off from your profile settings.\n")
	return b.String()
}
