package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/middleware"
	"budgetbuddy/internal/uuid"
	"budgetbuddy/internal/validator"
)

const dateOnlyLayout = "2006-01-02"

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// bindError converts a binding failure into an INVALID_INPUT error carrying
// per-field messages when the failure came from struct validation.
func bindError(err error) *apperrors.AppError {
	if fields := validator.FieldErrors(err); len(fields) > 0 {
		return apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input", fields)
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, "Malformed request body")
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
				"request_id", c.GetString(middleware.RequestIDKey),
			)
		}
		c.JSON(appErr.StatusCode, middleware.ErrorBody(appErr))
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", c.GetString(middleware.RequestIDKey),
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, middleware.ErrorBody(apperrors.ErrInternalServer))
}

// parseFlexibleTime accepts RFC3339 timestamps or bare YYYY-MM-DD dates. The
// second result reports whether the value was date-only.
func parseFlexibleTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, use RFC3339 or YYYY-MM-DD", s)
}

// parseDateRange reads optional bounds from the query parameters startKey and
// endKey. A date-only end bound covers that whole day.
func parseDateRange(c *gin.Context, startKey, endKey string) (aggregate.DateRange, error) {
	var r aggregate.DateRange

	if v := c.Query(startKey); v != "" {
		t, _, err := parseFlexibleTime(v)
		if err != nil {
			return r, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
				map[string]string{startKey: "must be RFC3339 or YYYY-MM-DD"})
		}
		r.Start = &t
	}

	if v := c.Query(endKey); v != "" {
		t, dateOnly, err := parseFlexibleTime(v)
		if err != nil {
			return r, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
				map[string]string{endKey: "must be RFC3339 or YYYY-MM-DD"})
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		r.End = &t
	}

	if err := r.Validate(); err != nil {
		return r, apperrors.ErrInvalidDateRange
	}
	return r, nil
}

// ErrorDetail is the body of an error response.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// MessageResponse represents a plain confirmation response.
type MessageResponse struct {
	Message string `json:"message"`
}
