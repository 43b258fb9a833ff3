package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountService struct {
	BaseService
	AccountRepository portsrepo.AccountRepositoryFacade
}

func NewAccountService(repo portsrepo.AccountRepositoryFacade) *AccountService {
	return &AccountService{AccountRepository: repo}
}

var _ portssvc.AccountSvcFacade = (*AccountService)(nil)

// CreateAccount onboards a tenant. New accounts always start with a zero balance; credits
// are granted afterwards with an admin adjustment.
func (s *AccountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, userID string) (*domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: account name is required", apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	account := domain.Account{
		AccountID: uuid.NewString(),
		Name:      name,
		Balance:   decimal.Zero,
		TotalUsed: decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	if err := s.AccountRepository.SaveAccount(ctx, account); err != nil {
		s.LogError(ctx, err, "Failed to save account in repository", slog.String("account_id", account.AccountID))
		return nil, err
	}

	s.LogInfo(ctx, "Account created successfully in service", slog.String("account_id", account.AccountID))
	return &account, nil
}

func (s *AccountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.AccountRepository.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		s.LogError(ctx, err, "Failed to find account by ID in repository", slog.String("account_id", accountID))
		return nil, err
	}
	s.LogDebug(ctx, "Account retrieved successfully from service", slog.String("account_id", account.AccountID))
	return account, nil
}
