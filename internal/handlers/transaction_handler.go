package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/pagination"
	"budgetbuddy/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// TransactionRequest is the payload for creating or replacing a transaction.
// Amount is in minor currency units; non-positive values are rejected by the
// service with INVALID_AMOUNT.
type TransactionRequest struct {
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount      int64                  `json:"amount"`
	Category    string                 `json:"category" binding:"max=100"`
	Description string                 `json:"description" binding:"required,notblank,max=500"`
	Date        *string                `json:"date"`
	Notes       string                 `json:"notes" binding:"max=2000"`
}

// input converts the request into service input, parsing the optional date.
func (r TransactionRequest) input() (services.TransactionInput, error) {
	in := services.TransactionInput{
		Type:        r.Type,
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Description,
		Notes:       r.Notes,
	}
	if r.Date != nil && *r.Date != "" {
		t, _, err := parseFlexibleTime(*r.Date)
		if err != nil {
			return in, apperrors.WithFields(apperrors.ErrInvalidInput, "Invalid input",
				map[string]string{"date": "must be RFC3339 or YYYY-MM-DD"})
		}
		in.Date = t
	}
	return in, nil
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Create an income or expense. An unknown category label is added to the user's categories.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), services.AuditEvent{
		UserID:       userID,
		Action:       "CREATE_TRANSACTION",
		ResourceType: "transaction",
		ResourceID:   transaction.ID,
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"type": transaction.Type, "amount": transaction.Amount, "category": transaction.Category},
	})

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetUserTransactions handles listing the user's transactions
// @Summary     List transactions
// @Description Paginated list of the user's transactions with optional filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Param       sort query string false "date, -date, amount or -amount (default -date)"
// @Param       type query string false "income or expense"
// @Param       category query string false "Category label"
// @Param       start_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(c.Request.Context(), userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	r, err := parseDateRange(c, "start_date", "end_date")
	if err != nil {
		return filter, err
	}
	filter.FromDate, filter.ToDate = r.Start, r.End

	if v := c.Query("type"); v != "" {
		t, err := aggregate.ParseType(v)
		if err != nil {
			return filter, apperrors.ErrInvalidTransactionType
		}
		filter.Type = &t
	}

	if v, ok := c.GetQuery("category"); ok {
		filter.Category = &v
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a single transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction owned by the authenticated user
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Owned by another user"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(c.Request.Context(), userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles a full replacement of a transaction
// @Summary     Update a transaction
// @Description Replace every writable field of a transaction. Omitting date keeps the stored date.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Param       request body TransactionRequest true "Transaction details"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Owned by another user"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(c.Request.Context(), userID, transactionID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), services.AuditEvent{
		UserID:       userID,
		Action:       "UPDATE_TRANSACTION",
		ResourceType: "transaction",
		ResourceID:   transactionID,
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"type": transaction.Type, "amount": transaction.Amount, "category": transaction.Category},
	})

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deletion of a transaction
// @Summary     Delete a transaction
// @Description Permanently delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Owned by another user"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), services.AuditEvent{
		UserID:       userID,
		Action:       "DELETE_TRANSACTION",
		ResourceType: "transaction",
		ResourceID:   transactionID,
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}
