package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler handles HTTP requests that change balances.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newLedgerHandler(ls portssvc.LedgerSvcFacade) *ledgerHandler {
	return &ledgerHandler{ledgerService: ls}
}

// registerLedgerRoutes registers the balance mutation routes and the price list.
func registerLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newLedgerHandler(ledgerService)

	ledger := rg.Group("/ledger")
	{
		ledger.POST("/debit", h.debit)
		ledger.POST("/adjust", middleware.RequireAdmin(), h.adjust)
		ledger.POST("/refund", middleware.RequireAdmin(), h.refund)
	}
	rg.GET("/catalog", h.catalog)
}

// debit godoc
// @Summary Debit credits for a billable operation
// @Description Atomically takes credits from an account. When cost is omitted the catalog price of the kind is charged.
// @Description Requests carrying an idempotencyKey that was already used return the original result with replayed=true.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   debit body dto.DebitRequest true "Debit details"
// @Success 200 {object} dto.LedgerResponse
// @Failure 400 {object} dto.LedgerResponse "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} dto.LedgerResponse "Insufficient credits"
// @Failure 403 {object} map[string]string "Forbidden (another tenant's account)"
// @Failure 404 {object} dto.LedgerResponse "Account not found"
// @Failure 503 {object} dto.LedgerResponse "Ledger busy, retry later"
// @Security BearerAuth
// @Router /ledger/debit [post]
func (h *ledgerHandler) debit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for Debit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.LedgerResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	principal, ok := authorizeAccount(c, req.AccountID)
	if !ok {
		return
	}

	metadata, err := domain.UnmarshalMetadata(req.Metadata)
	if err != nil {
		logger.Warn("Invalid debit metadata", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.LedgerResponse{Error: "Invalid metadata: " + err.Error()})
		return
	}

	kind := domain.OperationKind(req.Kind)
	logger = logger.With(slog.String("account_id", req.AccountID), slog.String("kind", req.Kind))
	logger.Info("Received request to debit credits")

	var result *domain.LedgerResult
	if req.Cost == nil {
		result, err = h.ledgerService.Charge(c.Request.Context(), portssvc.ChargeCommand{
			AccountID:      req.AccountID,
			Kind:           kind,
			Description:    req.Description,
			Metadata:       metadata,
			IdempotencyKey: req.IdempotencyKey,
			ActorID:        principal.UserID,
		})
	} else {
		result, err = h.ledgerService.Debit(c.Request.Context(), portssvc.DebitCommand{
			AccountID:      req.AccountID,
			Amount:         *req.Cost,
			Kind:           kind,
			Description:    req.Description,
			Metadata:       metadata,
			IdempotencyKey: req.IdempotencyKey,
			ActorID:        principal.UserID,
		})
	}
	if err != nil {
		writeLedgerError(c, err, "Debit rejected")
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerResponse(result))
}

// adjust godoc
// @Summary Manually grant or remove credits
// @Description Positive amounts are recorded as admin_add, negative ones as admin_deduct. Adjustments never change totalUsed.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   adjustment body dto.AdjustRequest true "Adjustment details"
// @Success 200 {object} dto.LedgerResponse
// @Failure 400 {object} dto.LedgerResponse "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} dto.LedgerResponse "Account not found"
// @Failure 409 {object} dto.LedgerResponse "Adjustment would make the balance negative"
// @Failure 503 {object} dto.LedgerResponse "Ledger busy, retry later"
// @Security BearerAuth
// @Router /ledger/adjust [post]
func (h *ledgerHandler) adjust(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for AdminAdjust", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.LedgerResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	adminID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger.Info("Received request to adjust credits",
		slog.String("account_id", req.AccountID),
		slog.String("amount", req.Amount.String()))

	result, err := h.ledgerService.AdminAdjust(c.Request.Context(), portssvc.AdjustCommand{
		AccountID:   req.AccountID,
		Amount:      *req.Amount,
		Description: req.Description,
		Note:        req.Note,
		ActorID:     adminID,
	})
	if err != nil {
		writeLedgerError(c, err, "Adjustment rejected")
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerResponse(result))
}

// refund godoc
// @Summary Refund a billable debit
// @Description Credits back a debit whose paid operation failed. Each debit can be refunded once.
// @Description Admin only; tenants never refund their own charges.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   refund body dto.RefundRequest true "Refund details"
// @Success 200 {object} dto.LedgerResponse
// @Failure 400 {object} dto.LedgerResponse "Invalid input or not a billable debit"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} dto.LedgerResponse "Account or transaction not found"
// @Failure 409 {object} dto.LedgerResponse "Transaction already refunded"
// @Failure 503 {object} dto.LedgerResponse "Ledger busy, retry later"
// @Security BearerAuth
// @Router /ledger/refund [post]
func (h *ledgerHandler) refund(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for Refund", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.LedgerResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	principal, ok := authorizeAccount(c, req.AccountID)
	if !ok {
		return
	}

	logger.Info("Received request to refund transaction",
		slog.String("account_id", req.AccountID),
		slog.Int64("transaction_id", req.TransactionID))

	result, err := h.ledgerService.Refund(c.Request.Context(), portssvc.RefundCommand{
		AccountID:             req.AccountID,
		OriginalTransactionID: req.TransactionID,
		Reason:                req.Reason,
		ActorID:               principal.UserID,
	})
	if err != nil {
		writeLedgerError(c, err, "Refund rejected")
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerResponse(result))
}

// catalog godoc
// @Summary List operation prices
// @Tags ledger
// @Produce  json
// @Success 200 {array} dto.CatalogEntryResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /catalog [get]
func (h *ledgerHandler) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToCatalogResponse(h.ledgerService.CostCatalog()))
}
