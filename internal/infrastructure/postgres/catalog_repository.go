package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bargain-hub/bargain-hub/internal/domain/product"
)

// CatalogRepository implements product.Catalog against the marketplace's
// listings table.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetListing(ctx context.Context, productID uuid.UUID) (*product.Listing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT product_id, seller_id, price
		FROM product_listings WHERE product_id=$1 AND available
	`, productID)

	var l product.Listing
	if err := row.Scan(&l.ProductID, &l.SellerID, &l.Price); err != nil {
		if err == pgx.ErrNoRows {
			return nil, product.ErrListingNotFound
		}
		return nil, err
	}
	return &l, nil
}

// UpsertListing registers or refreshes a listing. Exposed for seeding and for
// the catalog sync job.
func (r *CatalogRepository) UpsertListing(ctx context.Context, l *product.Listing) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO product_listings (product_id, seller_id, price, available)
		VALUES ($1,$2,$3,TRUE)
		ON CONFLICT (product_id) DO UPDATE SET seller_id=$2, price=$3, available=TRUE
	`, l.ProductID, l.SellerID, l.Price)
	return err
}
