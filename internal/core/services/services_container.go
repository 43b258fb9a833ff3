package services

import (
	"fmt"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// Extra ledger options, such as the cache, event publisher and metrics, are applied after the
// ones derived from cfg.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, ledgerOptions ...LedgerServiceOption) (*portssvc.ServiceContainer, error) {
	catalog, err := domain.NewCostCatalog(cfg.CostOverrides)
	if err != nil {
		return nil, fmt.Errorf("invalid cost catalog: %w", err)
	}

	options := []LedgerServiceOption{
		WithCostCatalog(catalog),
		WithRetryPolicy(cfg.LedgerMaxRetries, cfg.LedgerRetryInitialInterval),
	}
	options = append(options, ledgerOptions...)

	return &portssvc.ServiceContainer{
		Account: NewAccountService(repos.AccountRepo),
		Ledger:  NewLedgerService(repos.LedgerUoW, repos.AccountRepo, repos.TransactionRepo, options...),
		Reporting: NewReportingService(repos.ReportingRepo, repos.AccountRepo, repos.TransactionRepo,
			WithDefaultWindowDays(cfg.SummaryWindowDays)),
	}, nil
}
