package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
)

// defaultCategory is one entry of the set seeded for every new user.
type defaultCategory struct {
	Name  string
	Type  models.CategoryType
	Icon  string
	Color string
}

var defaultCategories = []defaultCategory{
	{"Salary", models.CategoryTypeIncome, "briefcase", "#10B981"},
	{"Freelance", models.CategoryTypeIncome, "laptop", "#14B8A6"},
	{"Investments", models.CategoryTypeIncome, "trending-up", "#0EA5E9"},
	{"Gifts", models.CategoryTypeIncome, "gift", "#A855F7"},
	{aggregate.OtherCategory, models.CategoryTypeIncome, models.DefaultCategoryIcon, models.DefaultCategoryColor},
	{"Food", models.CategoryTypeExpense, "utensils", "#F97316"},
	{"Transportation", models.CategoryTypeExpense, "car", "#3B82F6"},
	{"Housing", models.CategoryTypeExpense, "home", "#8B5CF6"},
	{"Utilities", models.CategoryTypeExpense, "bolt", "#EAB308"},
	{"Entertainment", models.CategoryTypeExpense, "film", "#EC4899"},
	{"Healthcare", models.CategoryTypeExpense, "heart", "#EF4444"},
	{"Shopping", models.CategoryTypeExpense, "shopping-bag", "#F43F5E"},
	{aggregate.OtherCategory, models.CategoryTypeExpense, models.DefaultCategoryIcon, models.DefaultCategoryColor},
}

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category. A name already used by the same
// owner for the same type is rejected, never merged.
func (s *categoryService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !in.Type.Valid() {
		return nil, apperrors.ErrInvalidCategoryType
	}

	db := s.db.WithContext(ctx)

	exists, err := nameTaken(db, userID, name, in.Type, "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if exists {
		return nil, apperrors.ErrCategoryExists
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   in.Type,
		Icon:   orDefault(in.Icon, models.DefaultCategoryIcon),
		Color:  orDefault(in.Color, models.DefaultCategoryColor),
	}

	if err := db.Create(category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrCategoryExists
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories lists a user's categories sorted by name, optionally
// restricted to one type.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType) ([]models.Category, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if categoryType != nil {
		if !categoryType.Valid() {
			return nil, apperrors.ErrInvalidCategoryType
		}
		q = q.Where("type = ?", *categoryType)
	}

	categories := []models.Category{}
	if err := q.Order("name ASC").Order("type ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category owned by userID. A category that
// exists but belongs to someone else yields ErrForbidden.
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if category.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &category, nil
}

// UpdateCategory renames or restyles a non-default category.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID string, update CategoryUpdate) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.IsDefault {
		return nil, apperrors.ErrDefaultCategory
	}

	db := s.db.WithContext(ctx)

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(update.Name); name != "" && name != category.Name {
		taken, err := nameTaken(db, userID, name, category.Type, category.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if taken {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryExists, "Category name already exists")
		}
		updates["name"] = name
	}
	if update.Icon != "" {
		updates["icon"] = update.Icon
	}
	if update.Color != "" {
		updates["color"] = update.Color
	}

	if len(updates) > 0 {
		if err := db.Model(category).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryExists, "Category name already exists")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory removes a non-default category. Transactions keep their
// label; categories are not foreign keys.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	category, err := s.GetCategoryByID(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	if category.IsDefault {
		return apperrors.ErrDefaultCategory
	}

	if err := s.db.WithContext(ctx).Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ResolveOrCreate returns the owner's category with the given label and type,
// inserting it when missing. Concurrent callers racing on the same label end
// up with the same row: the insert is ON CONFLICT DO NOTHING followed by a
// re-read.
func (s *categoryService) ResolveOrCreate(tx *gorm.DB, userID, name string, categoryType models.CategoryType) (*models.Category, bool, error) {
	name = aggregate.NormalizeCategory(name)
	if !categoryType.Valid() {
		return nil, false, apperrors.ErrInvalidCategoryType
	}

	var existing models.Category
	err := tx.Where("user_id = ? AND name = ? AND type = ?", userID, name, categoryType).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   categoryType,
		Icon:   models.DefaultCategoryIcon,
		Color:  models.DefaultCategoryColor,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(category)
	if res.Error != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 1 {
		return category, true, nil
	}

	if err := tx.Where("user_id = ? AND name = ? AND type = ?", userID, name, categoryType).First(&existing).Error; err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &existing, false, nil
}

// SeedDefaults inserts the read-only default categories for a new user.
// Already present defaults are left alone.
func (s *categoryService) SeedDefaults(tx *gorm.DB, userID string) error {
	rows := make([]models.Category, 0, len(defaultCategories))
	for _, d := range defaultCategories {
		rows = append(rows, models.Category{
			UserID:    userID,
			Name:      d.Name,
			Type:      d.Type,
			Icon:      d.Icon,
			Color:     d.Color,
			IsDefault: true,
		})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// nameTaken reports whether (userID, name, type) is used by a category other than exceptID.
func nameTaken(db *gorm.DB, userID, name string, categoryType models.CategoryType, exceptID string) (bool, error) {
	q := db.Model(&models.Category{}).
		Where("user_id = ? AND name = ? AND type = ?", userID, name, categoryType)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
