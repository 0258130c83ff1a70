package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrListingNotFound = errors.New("listing not found")

// Listing is the slice of the catalog the engine needs: the seller binding
// and the listed price snapshotted as the negotiation's initial price.
type Listing struct {
	ProductID uuid.UUID `json:"productId"`
	SellerID  uuid.UUID `json:"sellerId"`
	Price     float64   `json:"price"`
}

// Catalog is the external product service contract.
type Catalog interface {
	GetListing(ctx context.Context, productID uuid.UUID) (*Listing, error)
}
