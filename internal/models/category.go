package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether t is income or expense.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Default display tokens applied when a category is created without them.
const (
	DefaultCategoryIcon  = "default-icon"
	DefaultCategoryColor = "#6366F1"
)

// Category is a user-owned label for transactions. (UserID, Name, Type) is
// unique; seeded defaults carry IsDefault and are read-only.
type Category struct {
	Base
	UserID    string       `gorm:"type:uuid;not null;uniqueIndex:idx_categories_owner_name_type,priority:1" json:"user_id"`
	Name      string       `gorm:"size:100;not null;uniqueIndex:idx_categories_owner_name_type,priority:2" json:"name"`
	Type      CategoryType `gorm:"size:16;not null;uniqueIndex:idx_categories_owner_name_type,priority:3" json:"type"`
	Icon      string       `gorm:"size:64" json:"icon"`
	Color     string       `gorm:"size:16" json:"color"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
}
