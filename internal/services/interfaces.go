package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/pagination"
)

// SyncIdentityInput carries the identity asserted by the external provider.
type SyncIdentityInput struct {
	ProviderUID string
	Email       string
	Name        string
}

// ProfileUpdate holds optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name               *string
	EmailNotifications *bool
	MonthlyReport      *bool
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	SyncIdentity(ctx context.Context, in SyncIdentityInput) (user *models.User, created bool, err error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.User, error)
	ListReportRecipients(ctx context.Context) ([]models.User, error)
}

// CategoryInput is the payload for creating a category.
type CategoryInput struct {
	Name  string
	Type  models.CategoryType
	Icon  string
	Color string
}

// CategoryUpdate holds optional category fields; empty means unchanged.
type CategoryUpdate struct {
	Name  string
	Icon  string
	Color string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, userID string, in CategoryInput) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
	// ResolveOrCreate runs on the caller's database handle so it can join an
	// enclosing transaction. created reports whether a new row was inserted.
	ResolveOrCreate(tx *gorm.DB, userID, name string, categoryType models.CategoryType) (category *models.Category, created bool, err error)
	SeedDefaults(tx *gorm.DB, userID string) error
}

// TransactionInput is the full set of writable transaction fields.
type TransactionInput struct {
	Type        models.TransactionType
	Amount      int64
	Category    string
	Description string
	Date        time.Time
	Notes       string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Type     *models.TransactionType
	Category *string
}

// Range returns the filter's date bounds.
func (f TransactionFilter) Range() aggregate.DateRange {
	return aggregate.DateRange{Start: f.FromDate, End: f.ToDate}
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error)
	GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// Overview bundles every aggregate for one owner and range.
type Overview struct {
	Totals            aggregate.Summary         `json:"totals"`
	IncomeCategories  []aggregate.CategoryTotal `json:"income_categories"`
	ExpenseCategories []aggregate.CategoryTotal `json:"expense_categories"`
	MonthlyTrends     []aggregate.MonthlyTotal  `json:"monthly_trends"`
}

// AnalyticsServicer computes read-only aggregates over a user's transactions.
type AnalyticsServicer interface {
	Summary(ctx context.Context, userID string, r aggregate.DateRange) (aggregate.Summary, error)
	CategoryBreakdown(ctx context.Context, userID string, t models.TransactionType, r aggregate.DateRange) ([]aggregate.CategoryTotal, error)
	MonthlyTrend(ctx context.Context, userID string, r aggregate.DateRange) ([]aggregate.MonthlyTotal, error)
	MonthlySeries(ctx context.Context, userID string, now time.Time, months int) ([]aggregate.MonthBucket, error)
	Overview(ctx context.Context, userID string, r aggregate.DateRange) (*Overview, error)
}

// ReportRun summarizes one execution of the monthly report job.
type ReportRun struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ReportServicer sends the monthly summary to opted-in users.
type ReportServicer interface {
	SendMonthlyReports(ctx context.Context, now time.Time) (*ReportRun, error)
}

// AuditEvent describes one user-initiated write.
type AuditEvent struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Changes      map[string]interface{}
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Record(ctx context.Context, event AuditEvent)
	Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}
