package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// OperationKind is the category of a balance change.
type OperationKind string

const (
	KindBlogGeneration  OperationKind = "blog_generation"
	KindImageGeneration OperationKind = "image_generation"
	KindImageEdit       OperationKind = "image_edit"
	KindAdminAdd        OperationKind = "admin_add"
	KindAdminDeduct     OperationKind = "admin_deduct"
	KindRefund          OperationKind = "refund"
)

// AllOperationKinds lists every kind in a stable order.
var AllOperationKinds = []OperationKind{
	KindBlogGeneration,
	KindImageGeneration,
	KindImageEdit,
	KindAdminAdd,
	KindAdminDeduct,
	KindRefund,
}

// IsValid reports whether k is one of the known kinds.
func (k OperationKind) IsValid() bool {
	for _, known := range AllOperationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsBillable reports whether k is a paid operation priced by the cost catalog.
func (k OperationKind) IsBillable() bool {
	switch k {
	case KindBlogGeneration, KindImageGeneration, KindImageEdit:
		return true
	}
	return false
}

// IsAdmin reports whether k is a manual adjustment.
func (k OperationKind) IsAdmin() bool {
	return k == KindAdminAdd || k == KindAdminDeduct
}

// CreditScale is the number of decimal places a credit amount may carry.
const CreditScale = 4

// FitsCreditScale reports whether d needs no more than CreditScale decimal places.
func FitsCreditScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(CreditScale))
}

// CatalogEntry is one priced operation.
type CatalogEntry struct {
	Kind  OperationKind   `json:"kind"`
	Price decimal.Decimal `json:"price"`
}

// CostCatalog maps billable operation kinds to a fixed credit price.
// It is immutable once built.
type CostCatalog struct {
	prices map[OperationKind]decimal.Decimal
}

// DefaultCostCatalog returns the standard price list.
func DefaultCostCatalog() CostCatalog {
	return CostCatalog{prices: map[OperationKind]decimal.Decimal{
		KindBlogGeneration:  decimal.NewFromInt(10),
		KindImageGeneration: decimal.NewFromInt(1),
		KindImageEdit:       decimal.NewFromInt(2),
	}}
}

// NewCostCatalog builds a catalog from the defaults with the given prices replaced.
// Overrides must name billable kinds and carry strictly positive prices of at most
// CreditScale decimal places.
func NewCostCatalog(overrides map[OperationKind]decimal.Decimal) (CostCatalog, error) {
	catalog := DefaultCostCatalog()
	for kind, price := range overrides {
		if !kind.IsBillable() {
			return CostCatalog{}, fmt.Errorf("cost catalog: %q is not a billable operation", kind)
		}
		if !price.IsPositive() {
			return CostCatalog{}, fmt.Errorf("cost catalog: price for %q must be positive, got %s", kind, price.String())
		}
		if !FitsCreditScale(price) {
			return CostCatalog{}, fmt.Errorf("cost catalog: price for %q has more than %d decimal places", kind, CreditScale)
		}
		catalog.prices[kind] = price
	}
	return catalog, nil
}

// Price returns the price of kind. ok is false for non-billable kinds.
func (c CostCatalog) Price(kind OperationKind) (decimal.Decimal, bool) {
	price, ok := c.prices[kind]
	return price, ok
}

// Entries returns the catalog sorted by kind name.
func (c CostCatalog) Entries() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(c.prices))
	for kind, price := range c.prices {
		entries = append(entries, CatalogEntry{Kind: kind, Price: price})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Kind < entries[j].Kind })
	return entries
}
