package repositories

import (
	"context"

	"github.com/shopspring/decimal"
)

// CachedBalance is a balance snapshot stamped with the account version it was read at.
type CachedBalance struct {
	Balance decimal.Decimal
	Version int64
}

// BalanceCache is a read-side cache of account balances. It is never consulted by
// mutations, which always read the locked row.
type BalanceCache interface {
	// GetBalance returns nil, nil on a cache miss.
	GetBalance(ctx context.Context, accountID string) (*CachedBalance, error)

	// SetBalance stores the snapshot unless the cache already holds a newer version.
	SetBalance(ctx context.Context, accountID string, snapshot CachedBalance) error

	// Invalidate drops the cached balance of an account but remembers version, so a
	// snapshot older than version is refused afterwards.
	Invalidate(ctx context.Context, accountID string, version int64) error
}
