package mapping

import (
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/SscSPs/credit_ledger_app/internal/models"
)

// ToModelAccount converts a domain Account to a model Account
func ToModelAccount(d domain.Account) models.Account {
	return models.Account{
		AccountID:   d.AccountID,
		Name:        d.Name,
		Balance:     d.Balance,
		TotalUsed:   d.TotalUsed,
		Version:     d.Version,
		AuditFields: ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainAccount converts a model Account to a domain Account
func ToDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		AccountID:   m.AccountID,
		Name:        m.Name,
		Balance:     m.Balance,
		TotalUsed:   m.TotalUsed,
		Version:     m.Version,
		AuditFields: ToDomainAuditFields(m.AuditFields),
	}
}
