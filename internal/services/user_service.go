package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db              *gorm.DB
	categoryService CategoryServicer
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, categoryService CategoryServicer) UserServicer {
	return &userService{
		db:              db,
		categoryService: categoryService,
	}
}

// SyncIdentity records a sign-in asserted by the identity provider. The user
// is matched by provider UID first, then linked by email; otherwise a new
// user is created and given the default categories.
//
// The input is trusted as-is: an email match re-links the account to the new
// provider UID. Callers must only pass identities a gateway has verified.
func (s *userService) SyncIdentity(ctx context.Context, in SyncIdentityInput) (*models.User, bool, error) {
	uid := strings.TrimSpace(in.ProviderUID)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if uid == "" || email == "" {
		return nil, false, apperrors.WithMessage(apperrors.ErrInvalidInput, "provider_uid and email are required")
	}

	now := time.Now().UTC()
	var user models.User
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider_uid = ?", uid).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Where("email = ?", email).First(&user).Error
		}

		switch {
		case err == nil:
			user.ProviderUID = uid
			user.Email = email
			if name != "" {
				user.Name = name
			}
			user.LastLoginAt = &now
			if err := tx.Save(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "email is already linked to another identity")
				}
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		user = models.User{
			ProviderUID:        uid,
			Email:              email,
			Name:               name,
			EmailNotifications: true,
			MonthlyReport:      true,
			LastLoginAt:        &now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		created = true
		return s.categoryService.SeedDefaults(tx, user.ID)
	})
	if err != nil {
		return nil, false, err
	}

	return &user, created, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of update.
func (s *userService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != nil {
		updates["name"] = strings.TrimSpace(*update.Name)
	}
	if update.EmailNotifications != nil {
		updates["email_notifications"] = *update.EmailNotifications
	}
	if update.MonthlyReport != nil {
		updates["monthly_report"] = *update.MonthlyReport
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetUserByID(ctx, id)
}

// ListReportRecipients returns every user who opted into the monthly report.
func (s *userService) ListReportRecipients(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).
		Where("monthly_report = ?", true).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}
