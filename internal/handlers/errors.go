package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// errorStatus maps a service error to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrResultingBalanceNegative):
		return http.StatusConflict, "Adjustment would make the balance negative"
	case errors.Is(err, apperrors.ErrAlreadyRefunded):
		return http.StatusConflict, "Transaction already refunded"
	case errors.Is(err, apperrors.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, apperrors.ErrConcurrencyConflict),
		errors.Is(err, apperrors.ErrStorageFailure),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeError writes a {"error": ...} body for err.
func writeError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	status, safe := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
	} else {
		logger.Warn(msg, slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": safe})
}

// writeLedgerError writes a failed LedgerResponse for err. Insufficient credits carry the
// required and available amounts.
func writeLedgerError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	status, safe := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
	} else {
		logger.Info(msg, slog.String("error", err.Error()))
	}

	resp := dto.LedgerResponse{Success: false, Error: safe}
	var insufficient *apperrors.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		resp.Required = &insufficient.Required
		resp.Available = &insufficient.Available
	}
	c.JSON(status, resp)
}

// authorizeAccount checks that the caller may act on accountID and writes 401/403 if not.
func authorizeAccount(c *gin.Context, accountID string) (middleware.Principal, bool) {
	principal, ok := middleware.GetPrincipalFromCtx(c.Request.Context())
	if !ok {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Principal not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return middleware.Principal{}, false
	}
	if !principal.CanAccessAccount(accountID) {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Caller forbidden to access account",
			slog.String("target_account_id", accountID))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return middleware.Principal{}, false
	}
	return principal, true
}
