package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/pagination"
)

// transactionSortColumns whitelists the columns a list request may sort on.
var transactionSortColumns = map[string]string{
	"date":   "date",
	"amount": "amount",
}

const defaultTransactionOrder = "date DESC"

// transactionService handles transaction-related business logic.
type transactionService struct {
	db              *gorm.DB
	categoryService CategoryServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, categoryService CategoryServicer) TransactionServicer {
	return &transactionService{
		db:              db,
		categoryService: categoryService,
	}
}

// CreateTransaction validates in and stores a new transaction for userID.
// The category label is resolved against the owner's categories in the same
// database transaction, creating it when it does not exist yet.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error) {
	in, err := normalizeTransactionInput(in)
	if err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	transaction := &models.Transaction{
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Notes:       in.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, _, err := s.categoryService.ResolveOrCreate(tx, userID, in.Category, models.CategoryType(in.Type)); err != nil {
			return err
		}
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if err := filter.Range().Validate(); err != nil {
		return nil, apperrors.ErrInvalidDateRange
	}

	page.Defaults()
	order, ok := page.OrderClause(transactionSortColumns, defaultTransactionOrder)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "sort must be one of date, -date, amount, -amount")
	}

	base := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order(order).
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", aggregate.NormalizeCategory(*f.Category))
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID. Transactions owned by
// another user are reported as forbidden rather than hidden.
func (s *transactionService) GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	return findOwnedTransaction(s.db.WithContext(ctx), userID, transactionID)
}

func findOwnedTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("id = ?", transactionID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if transaction.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &transaction, nil
}

// UpdateTransaction replaces every writable field of a transaction. A zero
// date keeps the stored date.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionInput) (*models.Transaction, error) {
	in, err := normalizeTransactionInput(in)
	if err != nil {
		return nil, err
	}

	var transaction *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOwnedTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}

		if _, _, err := s.categoryService.ResolveOrCreate(tx, userID, in.Category, models.CategoryType(in.Type)); err != nil {
			return err
		}

		existing.Type = in.Type
		existing.Amount = in.Amount
		existing.Category = in.Category
		existing.Description = in.Description
		existing.Notes = in.Notes
		if !in.Date.IsZero() {
			existing.Date = in.Date
		}

		if err := tx.Save(existing).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		transaction = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

// DeleteTransaction permanently removes a transaction owned by userID.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	db := s.db.WithContext(ctx)

	transaction, err := findOwnedTransaction(db, userID, transactionID)
	if err != nil {
		return err
	}

	if err := db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// normalizeTransactionInput checks the invariants shared by create and update
// and canonicalizes the category label.
func normalizeTransactionInput(in TransactionInput) (TransactionInput, error) {
	if !in.Type.Valid() {
		return in, apperrors.ErrInvalidTransactionType
	}
	if in.Amount <= 0 {
		return in, apperrors.ErrInvalidAmount
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return in, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
			map[string]string{"description": "is required"})
	}
	if utf8.RuneCountInString(in.Description) > 500 {
		return in, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
			map[string]string{"description": "must be at most 500 characters"})
	}
	in.Category = aggregate.NormalizeCategory(in.Category)
	if !in.Date.IsZero() {
		in.Date = in.Date.UTC()
	}
	return in, nil
}
