package aggregate

import (
	"sort"
	"time"

	"budgetbuddy/internal/models"
)

// Summary is income, expenses and their difference over a transaction set.
type Summary struct {
	Income   int64 `json:"income"`
	Expenses int64 `json:"expenses"`
	Balance  int64 `json:"balance"`
}

// NewSummary builds a Summary and derives the balance.
func NewSummary(income, expenses int64) Summary {
	return Summary{Income: income, Expenses: expenses, Balance: income - expenses}
}

// CategoryTotal is the sum and count of one category label.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
	Count    int64  `json:"count"`
}

// MonthlyTotal is the sum of one type within one calendar month.
type MonthlyTotal struct {
	Year  int                    `json:"year"`
	Month int                    `json:"month"`
	Type  models.TransactionType `json:"type"`
	Total int64                  `json:"total"`
}

// MonthBucket is one slot of a dense monthly series.
type MonthBucket struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"`
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// Summarize partitions txs by type and sums each side.
func Summarize(txs []models.Transaction) Summary {
	var income, expenses int64
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionTypeIncome:
			income += tx.Amount
		case models.TransactionTypeExpense:
			expenses += tx.Amount
		}
	}
	return NewSummary(income, expenses)
}

// BreakdownByCategory groups transactions of type typ by normalized label.
// The result is never nil and is ordered by SortBreakdown.
func BreakdownByCategory(txs []models.Transaction, typ models.TransactionType) []CategoryTotal {
	index := make(map[string]int)
	out := []CategoryTotal{}
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		label := NormalizeCategory(tx.Category)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, CategoryTotal{Category: label})
		}
		out[i].Total += tx.Amount
		out[i].Count++
	}
	SortBreakdown(out)
	return out
}

// MergeBreakdown folds rows whose labels normalize to the same value, e.g. a
// NULL and an empty-string category both becoming OtherCategory, then sorts.
func MergeBreakdown(rows []CategoryTotal) []CategoryTotal {
	index := make(map[string]int, len(rows))
	out := make([]CategoryTotal, 0, len(rows))
	for _, r := range rows {
		label := NormalizeCategory(r.Category)
		if i, ok := index[label]; ok {
			out[i].Total += r.Total
			out[i].Count += r.Count
			continue
		}
		index[label] = len(out)
		out = append(out, CategoryTotal{Category: label, Total: r.Total, Count: r.Count})
	}
	SortBreakdown(out)
	return out
}

// SortBreakdown orders by total descending, then label ascending so equal
// totals always come out in the same order.
func SortBreakdown(rows []CategoryTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Category < rows[j].Category
	})
}

// MonthlyTrend groups txs by (year, month, type). Months without
// transactions are absent. The result is never nil.
func MonthlyTrend(txs []models.Transaction) []MonthlyTotal {
	type key struct {
		year, month int
		typ         models.TransactionType
	}
	index := make(map[key]int)
	out := []MonthlyTotal{}
	for _, tx := range txs {
		if !tx.Type.Valid() {
			continue
		}
		y, m := MonthOf(tx.Date)
		k := key{y, m, tx.Type}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, MonthlyTotal{Year: y, Month: m, Type: tx.Type})
		}
		out[i].Total += tx.Amount
	}
	SortTrend(out)
	return out
}

// SortTrend orders ascending by (year, month), income before expense.
func SortTrend(rows []MonthlyTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return typeRank(a.Type) < typeRank(b.Type)
	})
}

func typeRank(t models.TransactionType) int {
	if t == models.TransactionTypeIncome {
		return 0
	}
	return 1
}

// DenseSeries expands a sparse trend into exactly months buckets ending at
// the UTC month containing now, oldest first. Months with no data are zero.
func DenseSeries(trend []MonthlyTotal, now time.Time, months int) []MonthBucket {
	if months <= 0 {
		return []MonthBucket{}
	}
	y, m := MonthOf(now)
	anchor := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)

	out := make([]MonthBucket, months)
	slot := make(map[[2]int]int, months)
	for i := 0; i < months; i++ {
		d := anchor.AddDate(0, i-months+1, 0)
		out[i] = MonthBucket{Year: d.Year(), Month: int(d.Month())}
		slot[[2]int{d.Year(), int(d.Month())}] = i
	}

	for _, row := range trend {
		i, ok := slot[[2]int{row.Year, row.Month}]
		if !ok {
			continue
		}
		switch row.Type {
		case models.TransactionTypeIncome:
			out[i].Income += row.Total
		case models.TransactionTypeExpense:
			out[i].Expense += row.Total
		}
	}
	return out
}

// SeriesWindow returns the inclusive UTC range covered by DenseSeries(now, months).
func SeriesWindow(now time.Time, months int) DateRange {
	y, m := MonthOf(now)
	anchor := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	start := anchor.AddDate(0, 1-months, 0)
	end := anchor.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return DateRange{Start: &start, End: &end}
}
