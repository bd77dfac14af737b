package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a single income or expense entry. Category holds a label,
// not a foreign key: deleting a Category leaves existing labels intact.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index:idx_transactions_user_date,priority:1" json:"user_id"`
	Type        TransactionType `gorm:"size:16;not null" json:"type"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Category    string          `gorm:"size:100;not null" json:"category"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Date        time.Time       `gorm:"not null;index:idx_transactions_user_date,priority:2" json:"date"`
	Notes       string          `json:"notes,omitempty"`
}
