package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/models"
)

const maxAuditEntries = 100

// auditService writes and reads the audit trail.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Record stores an audit event. Failures are logged and swallowed so an
// audit problem never fails the write it describes.
func (s *auditService) Record(ctx context.Context, event AuditEvent) {
	log := logger.Named("audit")

	var changes string
	if len(event.Changes) > 0 {
		data, err := json.Marshal(event.Changes)
		if err != nil {
			log.Warnw("dropping unserializable audit changes", "error", err, "action", event.Action)
		} else {
			changes = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:       event.UserID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		IPAddress:    event.IPAddress,
		Changes:      changes,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry",
			"error", err,
			"user_id", event.UserID,
			"action", event.Action,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
		)
	}
}

// Recent returns the user's latest audit entries, newest first.
func (s *auditService) Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > maxAuditEntries {
		limit = maxAuditEntries
	}

	entries := []models.AuditLog{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}
