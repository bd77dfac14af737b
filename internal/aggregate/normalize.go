// Package aggregate holds the pure aggregation rules shared by the server's
// analytics queries and the client-side view cache. Both sides must agree on
// how categories are labeled and how months are bucketed, so the rules live
// here and nowhere else.
package aggregate

import (
	"errors"
	"strings"
	"time"

	"budgetbuddy/internal/models"
)

// OtherCategory is the label used for transactions without a category.
const OtherCategory = "Other"

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("aggregate: end date is before start date")

// ErrInvalidType is returned for a type that is neither income nor expense.
var ErrInvalidType = errors.New("aggregate: type must be income or expense")

// NormalizeCategory trims label and maps an empty label to OtherCategory.
func NormalizeCategory(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return OtherCategory
	}
	return label
}

// ParseType accepts "income" or "expense" in any case.
func ParseType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// DateRange is an optional inclusive window. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return ErrInvalidRange
	}
	return nil
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether t falls inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Filter returns the transactions dated inside r, preserving order.
func Filter(txs []models.Transaction, r DateRange) []models.Transaction {
	if r.IsZero() {
		return txs
	}
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if r.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// MonthOf returns the UTC calendar year and month of t. All month bucketing
// is done in UTC so server and client agree regardless of local zone.
func MonthOf(t time.Time) (int, int) {
	u := t.UTC()
	return u.Year(), int(u.Month())
}
