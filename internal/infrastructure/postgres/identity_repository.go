package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bargain-hub/bargain-hub/internal/domain/identity"
)

// IdentityRepository implements identity.Verifier against the users table.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) VerifyUser(ctx context.Context, userID uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE user_id=$1 AND active)
	`, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return identity.ErrUnknownUser
	}
	return nil
}

// RegisterUser inserts a user reference. Exposed for seeding and tests.
func (r *IdentityRepository) RegisterUser(ctx context.Context, userID uuid.UUID, displayName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, display_name, active)
		VALUES ($1,$2,TRUE)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, displayName)
	return err
}
