package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger defines persistence for sessions and their append-only entries.
// Append is the sole mutating primitive after session creation: it commits the
// entry and the projected summary in one atomic unit, or fails with
// ErrConflict when expectedVersion is no longer current.
type Ledger interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	FindActive(ctx context.Context, productID, buyerID uuid.UUID) (*Session, error)
	Append(ctx context.Context, next *Session, entry *Entry, expectedVersion int64) error
	ListEntries(ctx context.Context, sessionID uuid.UUID, afterSeq int64, limit int) ([]*Entry, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Session, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*Session, error)
	ListIdleActive(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error)
}

// SummaryCache accelerates "my negotiations" listings. It is a best-effort
// secondary structure: readers fall through to the ledger on miss, and stale
// values are bounded by the cache TTL.
type SummaryCache interface {
	GetParticipant(ctx context.Context, userID uuid.UUID) ([]*Session, bool)
	SetParticipant(ctx context.Context, userID uuid.UUID, sessions []*Session) error
	Invalidate(ctx context.Context, userIDs ...uuid.UUID) error
}

// Event is the realtime payload published to a session's room after each
// successful append. Clients deduplicate and order by Sequence.
type Event struct {
	EventID   string    `json:"eventId"`
	SessionID uuid.UUID `json:"sessionId"`
	Sequence  int64     `json:"sequence"`
	Kind      Kind      `json:"kind"`
	Amount    *float64  `json:"amount,omitempty"`
	Text      *string   `json:"text,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans events out to the connected members of a session's room.
// Publish must never block the append path.
type Broadcaster interface {
	Publish(sessionID uuid.UUID, event *Event)
	IsConnected(sessionID, userID uuid.UUID) bool
}

// AcceptedEvent is emitted to the order/payment collaborator when a session
// transitions to Accepted.
type AcceptedEvent struct {
	SessionID  uuid.UUID `json:"sessionId"`
	ProductID  uuid.UUID `json:"productId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	SellerID   uuid.UUID `json:"sellerId"`
	FinalPrice float64   `json:"finalPrice"`
}

// OrderEvents is the outbound contract towards order creation.
type OrderEvents interface {
	NegotiationAccepted(ctx context.Context, event *AcceptedEvent) error
}
