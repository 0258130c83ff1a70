package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// NegotiationRepository implements negotiation.Ledger.
type NegotiationRepository struct {
	pool *pgxpool.Pool
}

func NewNegotiationRepository(pool *pgxpool.Pool) *NegotiationRepository {
	return &NegotiationRepository{pool: pool}
}

const sessionColumns = `id, session_id, product_id, buyer_id, seller_id, status,
	initial_price, current_offer, final_price, last_offer_actor, version,
	message_count, offer_policy, trace_id, created_at, updated_at`

func (r *NegotiationRepository) CreateSession(ctx context.Context, s *negotiation.Session) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO negotiation_sessions
		(session_id, product_id, buyer_id, seller_id, status, initial_price,
		 current_offer, final_price, last_offer_actor, version, message_count,
		 offer_policy, trace_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`, s.SessionID, s.ProductID, s.BuyerID, s.SellerID, s.Status, s.InitialPrice,
		s.CurrentOffer, s.FinalPrice, s.LastOfferActor, s.Version, s.MessageCount,
		s.OfferPolicy, s.TraceID, s.CreatedAt, s.UpdatedAt).Scan(&s.ID)
}

func (r *NegotiationRepository) GetSession(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM negotiation_sessions WHERE session_id=$1
	`, sessionID)
	return scanNegotiationSession(row)
}

func (r *NegotiationRepository) FindActive(ctx context.Context, productID, buyerID uuid.UUID) (*negotiation.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM negotiation_sessions
		WHERE product_id=$1 AND buyer_id=$2 AND status='ACTIVE'
	`, productID, buyerID)
	return scanNegotiationSession(row)
}

// Append commits the projected summary and the new ledger entry in one
// transaction. The version predicate on the UPDATE is the compare-and-swap
// gate: zero rows affected means another writer got there first.
func (r *NegotiationRepository) Append(ctx context.Context, next *negotiation.Session, entry *negotiation.Entry, expectedVersion int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE negotiation_sessions
		SET status=$1, current_offer=$2, final_price=$3, last_offer_actor=$4,
		    version=$5, message_count=$6, updated_at=$7
		WHERE session_id=$8 AND version=$9
	`, next.Status, next.CurrentOffer, next.FinalPrice, next.LastOfferActor,
		next.Version, next.MessageCount, next.UpdatedAt, next.SessionID, expectedVersion)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return negotiation.ErrConflict
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO offer_entries (session_id, sequence, actor, kind, amount, text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, entry.SessionID, entry.Sequence, entry.Actor, entry.Kind, entry.Amount, entry.Text, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *NegotiationRepository) ListEntries(ctx context.Context, sessionID uuid.UUID, afterSeq int64, limit int) ([]*negotiation.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, sequence, actor, kind, amount, text, created_at
		FROM offer_entries
		WHERE session_id=$1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3
	`, sessionID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*negotiation.Entry, 0)
	for rows.Next() {
		var e negotiation.Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Sequence, &e.Actor, &e.Kind, &e.Amount, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *NegotiationRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM negotiation_sessions
		WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *NegotiationRepository) ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM negotiation_sessions
		WHERE product_id=$1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *NegotiationRepository) ListIdleActive(ctx context.Context, olderThan time.Time, limit int) ([]*negotiation.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM negotiation_sessions
		WHERE status='ACTIVE' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]*negotiation.Session, error) {
	sessions := make([]*negotiation.Session, 0)
	for rows.Next() {
		s, err := scanNegotiationSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanNegotiationSession(row pgx.Row) (*negotiation.Session, error) {
	var s negotiation.Session
	var lastOfferActor *string
	if err := row.Scan(&s.ID, &s.SessionID, &s.ProductID, &s.BuyerID, &s.SellerID, &s.Status,
		&s.InitialPrice, &s.CurrentOffer, &s.FinalPrice, &lastOfferActor, &s.Version,
		&s.MessageCount, &s.OfferPolicy, &s.TraceID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if lastOfferActor != nil {
		actor := negotiation.Actor(*lastOfferActor)
		s.LastOfferActor = &actor
	}
	return &s, nil
}
