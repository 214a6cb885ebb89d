package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	financeapp "github.com/pawmarket/backend/internal/application/finance"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
)

// FinanceHandler handles ledger and payout API endpoints
type FinanceHandler struct {
	BaseHandler
	ledgerService *financeapp.LedgerService
	payoutService *financeapp.PayoutService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(ledgerService *financeapp.LedgerService, payoutService *financeapp.PayoutService) *FinanceHandler {
	return &FinanceHandler{
		ledgerService: ledgerService,
		payoutService: payoutService,
	}
}

// ProcessPayout godoc
// @ID           processPayout
// @Summary      Withdraw accumulated balance
// @Description  Debits the caller's balance and records a payout ledger entry; retried requests with the same idempotency key return without double-paying
// @Tags         finance
// @Accept       json
// @Produce      json
// @Param        request body financeapp.PayoutRequest true "Amount and optional idempotency key"
// @Success      201 {object} APIResponse[financeapp.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/payouts [post]
func (h *FinanceHandler) ProcessPayout(c *gin.Context) {
	payeeUserID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req financeapp.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.payoutService.ProcessPayout(c.Request.Context(), payeeUserID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// RecordAdoption godoc
// @ID           recordAdoption
// @Summary      Settle a completed pet adoption
// @Description  Credits the shelter and records an adoption ledger entry
// @Tags         finance
// @Accept       json
// @Produce      json
// @Param        request body financeapp.RecordAdoptionRequest true "Shelter, adoption and fee"
// @Success      201 {object} APIResponse[financeapp.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/adoptions [post]
func (h *FinanceHandler) RecordAdoption(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var req financeapp.RecordAdoptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.ledgerService.RecordAdoption(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// RecordAppointment godoc
// @ID           recordAppointment
// @Summary      Settle a completed veterinary appointment
// @Description  Credits the vet and records an appointment ledger entry
// @Tags         finance
// @Accept       json
// @Produce      json
// @Param        request body financeapp.RecordAppointmentRequest true "Vet, appointment and fee"
// @Success      201 {object} APIResponse[financeapp.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/appointments [post]
func (h *FinanceHandler) RecordAppointment(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var req financeapp.RecordAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.ledgerService.RecordAppointment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Reverse godoc
// @ID           reverseTransaction
// @Summary      Reverse a posted ledger entry
// @Description  Appends a compensating entry and adjusts the payee's balance; the original row is marked reversed, never mutated
// @Tags         finance
// @Accept       json
// @Produce      json
// @Param        id path string true "Transaction ID"
// @Param        request body financeapp.ReverseTransactionRequest true "Reversal reason"
// @Success      201 {object} APIResponse[financeapp.TransactionResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/transactions/{id}/reverse [post]
func (h *FinanceHandler) Reverse(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req financeapp.ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.ledgerService.Reverse(c.Request.Context(), transactionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetTransaction godoc
// @ID           getTransaction
// @Summary      Get a ledger entry
// @Tags         finance
// @Produce      json
// @Param        id path string true "Transaction ID"
// @Success      200 {object} APIResponse[financeapp.TransactionResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/transactions/{id} [get]
func (h *FinanceHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	resp, err := h.ledgerService.GetByID(c.Request.Context(), transactionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if getRole(c) != identity.RoleAdmin && resp.PayeeUserID != userID {
		h.Forbidden(c, "Not allowed to view this transaction")
		return
	}

	h.Success(c, resp)
}

// ListTransactions godoc
// @ID           listTransactions
// @Summary      List the caller's ledger entries
// @Tags         finance
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]financeapp.TransactionResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/transactions [get]
func (h *FinanceHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var filter financeapp.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.ledgerService.ListByPayee(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListByReference godoc
// @ID           listTransactionsByReference
// @Summary      List ledger entries settling a business object
// @Tags         finance
// @Produce      json
// @Param        refType path string true "Reference type (order, adoption, appointment)"
// @Param        refId path string true "Reference ID"
// @Success      200 {object} APIResponse[[]financeapp.TransactionResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/references/{refType}/{refId} [get]
func (h *FinanceHandler) ListByReference(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	refID, err := uuid.Parse(c.Param("refId"))
	if err != nil {
		h.BadRequest(c, "Invalid reference ID")
		return
	}

	refType := ledger.ReferenceType(c.Param("refType"))

	resp, err := h.ledgerService.ListByReference(c.Request.Context(), refType, refID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Earnings godoc
// @ID           getEarnings
// @Summary      Get the caller's earnings summary
// @Description  Returns the withdrawable balance alongside the ledger running net
// @Tags         finance
// @Produce      json
// @Success      200 {object} APIResponse[financeapp.EarningsResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /finance/earnings [get]
func (h *FinanceHandler) Earnings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	resp, err := h.ledgerService.Earnings(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// requireAdmin aborts with 403 unless the caller is an admin
func (h *FinanceHandler) requireAdmin(c *gin.Context) bool {
	if getRole(c) != identity.RoleAdmin {
		h.Forbidden(c, "Admin role required")
		return false
	}
	return true
}

// RegisterRoutes registers all finance routes
func (h *FinanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	finance := rg.Group("/finance")
	{
		finance.POST("/payouts", h.ProcessPayout)
		finance.POST("/adoptions", h.RecordAdoption)
		finance.POST("/appointments", h.RecordAppointment)
		finance.GET("/transactions", h.ListTransactions)
		finance.GET("/transactions/:id", h.GetTransaction)
		finance.POST("/transactions/:id/reverse", h.Reverse)
		finance.GET("/references/:refType/:refId", h.ListByReference)
		finance.GET("/earnings", h.Earnings)
	}
}
