package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/middleware"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/services"
)

// AuthHandler handles identity sync and profile requests
type AuthHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, auditService services.AuditServicer) *AuthHandler {
	return &AuthHandler{userService: userService, auditService: auditService}
}

// SyncRequest carries the identity asserted by the external provider
type SyncRequest struct {
	ProviderUID string `json:"provider_uid" binding:"required,notblank,max=128"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Name        string `json:"name" binding:"max=100"`
}

// UpdateProfileRequest holds the editable profile fields
type UpdateProfileRequest struct {
	Name               *string `json:"name" binding:"omitempty,max=100"`
	EmailNotifications *bool   `json:"email_notifications"`
	MonthlyReport      *bool   `json:"monthly_report"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	EmailNotifications bool       `json:"email_notifications"`
	MonthlyReport      bool       `json:"monthly_report"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// AuthResponse represents the sync response with a session token
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Created   bool         `json:"created"`
	User      UserResponse `json:"user"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		EmailNotifications: u.EmailNotifications,
		MonthlyReport:      u.MonthlyReport,
		LastLoginAt:        u.LastLoginAt,
	}
}

// Sync records a sign-in from the identity provider and issues a session token.
// The provider token is not verified here; the route must sit behind a gateway
// that does (see IDENTITY_GATEWAY_TRUSTED).
// @Summary     Sync identity
// @Description Create or update the local user for a provider identity and return a session token. Default categories are seeded on first sync.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body SyncRequest true "Provider identity"
// @Success     200 {object} AuthResponse "Existing user synced"
// @Success     201 {object} AuthResponse "New user created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/sync [post]
func (h *AuthHandler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, created, err := h.userService.SyncIdentity(c.Request.Context(), services.SyncIdentityInput{
		ProviderUID: req.ProviderUID,
		Email:       req.Email,
		Name:        req.Name,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Record(c.Request.Context(), services.AuditEvent{
		UserID:       user.ID,
		Action:       "SYNC_IDENTITY",
		ResourceType: "user",
		ResourceID:   user.ID,
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"created": created},
	})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Created:   created,
		User:      toUserResponse(user),
	})
}

// GetProfile handles the retrieval of the authenticated user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile and report preferences
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// UpdateProfile handles changes to the user's name and report preferences
// @Summary     Update user profile
// @Description Update the display name and notification preferences
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateProfileRequest true "Profile fields"
// @Success     200 {object} UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		Name:               req.Name,
		EmailNotifications: req.EmailNotifications,
		MonthlyReport:      req.MonthlyReport,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), services.AuditEvent{
		UserID:       userID,
		Action:       "UPDATE_PROFILE",
		ResourceType: "user",
		ResourceID:   userID,
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// GetActivity lists the user's recent audited writes
// @Summary     Get recent activity
// @Description List the authenticated user's latest audited changes, newest first
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Maximum entries (default 20, max 100)"
// @Success     200 {array} models.AuditLog "Audit entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile/activity [get]
func (h *AuthHandler) GetActivity(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			respondWithError(c, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
				map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	entries, err := h.auditService.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": entries})
}
