package domain

import (
	"github.com/shopspring/decimal"
)

// BatchSummary is one entry of a platform's "my batches" listing.
type BatchSummary struct {
	ID    string
	Name  string
	Price decimal.NullDecimal
}

// PriceLabel renders the price, or "Free" when the listing carried none.
func (b BatchSummary) PriceLabel() string {
	if !b.Price.Valid {
		return "Free"
	}
	return b.Price.Decimal.String()
}

type SubjectSummary struct {
	ID   string
	Name string
}

// FindBatch looks id up in a previously fetched listing.
func FindBatch(batches []BatchSummary, id string) (*BatchSummary, bool) {
	for i := range batches {
		if batches[i].ID == id {
			return &batches[i], true
		}
	}
	return nil, false
}
