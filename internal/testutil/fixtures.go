package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgetbuddy/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a unique provider UID and email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ProviderUID:        fmt.Sprintf("provider-%d", nextID()),
		Email:              email,
		Name:               "Test User",
		EmailNotifications: true,
		MonthlyReport:      true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a custom category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()
	return CreateTestCategoryNamed(t, db, userID, fmt.Sprintf("Category %d", nextID()), categoryType)
}

// CreateTestCategoryNamed creates a custom category with the given name.
func CreateTestCategoryNamed(t *testing.T, db *gorm.DB, userID, name string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   categoryType,
		Icon:   models.DefaultCategoryIcon,
		Color:  models.DefaultCategoryColor,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestDefaultCategory creates a read-only default category.
func CreateTestDefaultCategory(t *testing.T, db *gorm.DB, userID, name string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := CreateTestCategoryNamed(t, db, userID, name, categoryType)
	if err := db.Model(category).Update("is_default", true).Error; err != nil {
		t.Fatalf("failed to mark category as default: %v", err)
	}
	category.IsDefault = true
	return category
}

// CreateTestTransaction creates a transaction dated now in the "Other" category.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, txType, amount, "Other", time.Now().UTC())
}

// CreateTestTransactionAt creates a transaction with an explicit category and date.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64, category string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Category:    category,
		Description: "Test transaction",
		Date:        date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
