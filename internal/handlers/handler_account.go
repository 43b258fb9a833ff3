package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// accountHandler handles HTTP requests related to accounts and their read views.
type accountHandler struct {
	accountService   portssvc.AccountSvcFacade
	ledgerService    portssvc.LedgerReaderSvc
	reportingService portssvc.ReportingService
}

// newAccountHandler creates a new accountHandler.
func newAccountHandler(as portssvc.AccountSvcFacade, ls portssvc.LedgerReaderSvc, rs portssvc.ReportingService) *accountHandler {
	return &accountHandler{
		accountService:   as,
		ledgerService:    ls,
		reportingService: rs,
	}
}

// registerAccountRoutes registers routes related to accounts.
func registerAccountRoutes(rg *gin.RouterGroup, services *portssvc.ServiceContainer) {
	h := newAccountHandler(services.Account, services.Ledger, services.Reporting)

	accounts := rg.Group("/accounts")
	{
		accounts.POST("", middleware.RequireAdmin(), h.createAccount)
		accounts.GET("/:id", h.getAccount)
		accounts.GET("/:id/balance", h.getBalance)
		accounts.GET("/:id/summary", h.getSummary)
		accounts.GET("/:id/transactions", h.listTransactions)
		accounts.GET("/:id/audit", middleware.RequireAdmin(), h.auditAccount)
	}
}

// createAccount godoc
// @Summary Create a new credit account
// @Description Onboards a tenant with a zero balance. Credits are granted with an adjustment.
// @Tags accounts
// @Accept  json
// @Produce  json
// @Param   account body dto.CreateAccountRequest true "Account details"
// @Success 201 {object} dto.AccountResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 500 {object} map[string]string "Failed to create account"
// @Security BearerAuth
// @Router /accounts [post]
func (h *accountHandler) createAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	creatorUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Creator user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger.Info("Received request to create account", slog.String("account_name", req.Name))

	newAccount, err := h.accountService.CreateAccount(c.Request.Context(), req, creatorUserID)
	if err != nil {
		writeError(c, err, "Failed to create account")
		return
	}

	logger.Info("Account created successfully", slog.String("account_id", newAccount.AccountID))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(newAccount))
}

// getAccount godoc
// @Summary Get an account by ID
// @Tags accounts
// @Produce  json
// @Param   id path string true "Account ID"
// @Success 200 {object} dto.AccountResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden (another tenant's account)"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{id} [get]
func (h *accountHandler) getAccount(c *gin.Context) {
	accountID := c.Param("id")
	if _, ok := authorizeAccount(c, accountID); !ok {
		return
	}

	account, err := h.accountService.GetAccountByID(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err, "Failed to get account")
		return
	}

	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// getBalance godoc
// @Summary Get the current balance of an account
// @Tags accounts
// @Produce  json
// @Param   id path string true "Account ID"
// @Success 200 {object} dto.AccountBalanceResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden (another tenant's account)"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{id}/balance [get]
func (h *accountHandler) getBalance(c *gin.Context) {
	accountID := c.Param("id")
	if _, ok := authorizeAccount(c, accountID); !ok {
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err, "Failed to get balance")
		return
	}

	c.JSON(http.StatusOK, dto.AccountBalanceResponse{AccountID: accountID, Balance: balance})
}

// getSummary godoc
// @Summary Get the balance summary of an account
// @Description Balance, total used, recent transactions and usage per kind and per day over a trailing window.
// @Tags accounts
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   recent query int false "Number of recent transactions" default(10)
// @Param   windowDays query int false "Usage window in days" default(30)
// @Success 200 {object} dto.BalanceSummaryResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden (another tenant's account)"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{id}/summary [get]
func (h *accountHandler) getSummary(c *gin.Context) {
	accountID := c.Param("id")
	if _, ok := authorizeAccount(c, accountID); !ok {
		return
	}

	var params dto.SummaryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	summary, err := h.reportingService.GetSummary(c.Request.Context(), accountID, portssvc.SummaryParams{
		RecentLimit: params.Recent,
		WindowDays:  params.WindowDays,
	})
	if err != nil {
		writeError(c, err, "Failed to build balance summary")
		return
	}

	c.JSON(http.StatusOK, dto.ToBalanceSummaryResponse(summary))
}

// listTransactions godoc
// @Summary List an account's transactions
// @Description Newest first. Pass the returned nextToken to fetch the next older page.
// @Tags accounts
// @Produce  json
// @Param   id path string true "Account ID"
// @Param   limit query int false "Page size" default(20)
// @Param   nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters or token"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden (another tenant's account)"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{id}/transactions [get]
func (h *accountHandler) listTransactions(c *gin.Context) {
	accountID := c.Param("id")
	if _, ok := authorizeAccount(c, accountID); !ok {
		return
	}

	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	page, err := h.reportingService.ListTransactions(c.Request.Context(), accountID, params.Limit, params.NextToken)
	if err != nil {
		writeError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, dto.ToListTransactionsResponse(page))
}

// auditAccount godoc
// @Summary Verify an account against its transaction log
// @Tags accounts
// @Produce  json
// @Param   id path string true "Account ID"
// @Success 200 {object} dto.AuditReportResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{id}/audit [get]
func (h *accountHandler) auditAccount(c *gin.Context) {
	accountID := c.Param("id")

	report, err := h.ledgerService.VerifyAccount(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err, "Failed to audit account")
		return
	}

	c.JSON(http.StatusOK, dto.ToAuditReportResponse(report))
}
