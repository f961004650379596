package domain

import "fmt"

// SellableUnit identifies the thing whose stock is tracked. The stock
// engine treats the identity as opaque; the two concrete schemes below
// cover simple product variants and marketplace seller listings.
type SellableUnit interface {
	// UnitKey returns the canonical identity used to key stock rows.
	UnitKey() string
}

// ProductVariantUnit identifies stock for a catalog product variant.
type ProductVariantUnit struct {
	ProductID string
	VariantID string
}

func (u ProductVariantUnit) UnitKey() string {
	return fmt.Sprintf("product:%s:%s", u.ProductID, u.VariantID)
}

// ListingVariantUnit identifies stock for a seller listing of a catalog
// variant. Two sellers listing the same variant track stock separately.
type ListingVariantUnit struct {
	ListingID string
	VariantID string
}

func (u ListingVariantUnit) UnitKey() string {
	return fmt.Sprintf("listing:%s:%s", u.ListingID, u.VariantID)
}

// RawUnit wraps an already-canonical unit key, for callers that persist
// the key itself (ledger queries, admin tooling).
type RawUnit string

func (u RawUnit) UnitKey() string { return string(u) }
