package negotiation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a negotiation session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusClosed   Status = "CLOSED"
)

// Actor identifies which party authored a ledger entry.
type Actor string

const (
	ActorBuyer  Actor = "BUYER"
	ActorSeller Actor = "SELLER"
	ActorSystem Actor = "SYSTEM"
)

// Kind identifies the type of a ledger entry.
type Kind string

const (
	KindMessage      Kind = "MESSAGE"
	KindOffer        Kind = "OFFER"
	KindCounterOffer Kind = "COUNTER_OFFER"
	KindAccept       Kind = "ACCEPT"
	KindReject       Kind = "REJECT"
	KindClose        Kind = "CLOSE"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidActor      = errors.New("invalid actor")
	ErrConflict          = errors.New("version conflict")
	ErrNotFound          = errors.New("not found")
)

// Session is the cached summary of one buyer-seller-product negotiation.
// Every summary field is a projection of the session's ledger; Reduce over the
// full ledger must reproduce it exactly.
type Session struct {
	ID             int64      `json:"id"`
	SessionID      uuid.UUID  `json:"sessionId"`
	ProductID      uuid.UUID  `json:"productId"`
	BuyerID        uuid.UUID  `json:"buyerId"`
	SellerID       uuid.UUID  `json:"sellerId"`
	Status         Status     `json:"status"`
	InitialPrice   float64    `json:"initialPrice"`
	CurrentOffer   *float64   `json:"currentOffer,omitempty"`
	FinalPrice     *float64   `json:"finalPrice,omitempty"`
	LastOfferActor *Actor     `json:"lastOfferActor,omitempty"`
	Version        int64      `json:"version"`
	MessageCount   int        `json:"messageCount"`
	OfferPolicy    *string    `json:"offerPolicy,omitempty"`
	TraceID        string     `json:"traceId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Entry is one append-only ledger record. Sequences are strictly increasing
// per session, starting at 1, with no gaps.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Sequence  int64     `json:"sequence"`
	Actor     Actor     `json:"actor"`
	Kind      Kind      `json:"kind"`
	Amount    *float64  `json:"amount,omitempty"`
	Text      *string   `json:"text,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession creates an Active session with the listed price snapshotted.
func NewSession(productID, buyerID, sellerID uuid.UUID, listedPrice float64, traceID string) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:    uuid.New(),
		ProductID:    productID,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		Status:       StatusActive,
		InitialPrice: listedPrice,
		Version:      0,
		TraceID:      traceID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsTerminal reports whether no further mutating entries are admitted.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusAccepted || s.Status == StatusRejected || s.Status == StatusClosed
}

// ActorFor resolves a user id to its role in the session.
func (s *Session) ActorFor(userID uuid.UUID) (Actor, error) {
	switch userID {
	case s.BuyerID:
		return ActorBuyer, nil
	case s.SellerID:
		return ActorSeller, nil
	}
	return "", ErrInvalidActor
}

// Counterpart returns the other bound participant for a given actor.
func (s *Session) Counterpart(actor Actor) uuid.UUID {
	if actor == ActorBuyer {
		return s.SellerID
	}
	return s.BuyerID
}

// Clone returns a copy safe to project a candidate entry onto.
func (s *Session) Clone() *Session {
	c := *s
	if s.CurrentOffer != nil {
		v := *s.CurrentOffer
		c.CurrentOffer = &v
	}
	if s.FinalPrice != nil {
		v := *s.FinalPrice
		c.FinalPrice = &v
	}
	if s.LastOfferActor != nil {
		a := *s.LastOfferActor
		c.LastOfferActor = &a
	}
	if s.OfferPolicy != nil {
		p := *s.OfferPolicy
		c.OfferPolicy = &p
	}
	return &c
}

// OfferKind returns OFFER for the session's first offer-bearing entry and
// COUNTER_OFFER thereafter.
func (s *Session) OfferKind() Kind {
	if s.LastOfferActor == nil {
		return KindOffer
	}
	return KindCounterOffer
}

// ValidateEntry checks whether an entry may be appended at the session's
// current state. Terminal sessions admit nothing, messages included; the
// ledger for a finished negotiation is frozen.
func ValidateEntry(s *Session, e *Entry) error {
	if e.Actor != ActorBuyer && e.Actor != ActorSeller && e.Actor != ActorSystem {
		return ErrInvalidActor
	}
	if s.IsTerminal() {
		return ErrInvalidTransition
	}

	switch e.Kind {
	case KindOffer, KindCounterOffer:
		if e.Actor == ActorSystem {
			return ErrInvalidActor
		}
		if e.Amount == nil || *e.Amount <= 0 {
			return ErrValidation
		}
		if s.CurrentOffer != nil && *s.CurrentOffer == *e.Amount {
			return ErrValidation
		}
		if s.LastOfferActor == nil && e.Kind == KindCounterOffer {
			return ErrValidation
		}
		if s.LastOfferActor != nil && e.Kind == KindOffer {
			return ErrValidation
		}
	case KindAccept:
		if s.CurrentOffer == nil || s.LastOfferActor == nil {
			return ErrInvalidTransition
		}
		if *s.LastOfferActor == e.Actor {
			return ErrInvalidActor
		}
		if e.Actor == ActorSystem {
			return ErrInvalidActor
		}
	case KindReject:
		if s.CurrentOffer == nil {
			return ErrInvalidTransition
		}
		if e.Actor == ActorSystem {
			return ErrInvalidActor
		}
	case KindClose:
		// SYSTEM is permitted: sweeper-driven timeout closes use this path.
	case KindMessage:
		if e.Text == nil || *e.Text == "" {
			return ErrValidation
		}
		if e.Actor == ActorSystem {
			return ErrInvalidActor
		}
	default:
		return ErrValidation
	}
	return nil
}

// ApplyEntry projects a validated entry onto the session summary. The
// session's version always equals the sequence of its latest entry.
func ApplyEntry(s *Session, e *Entry) {
	switch e.Kind {
	case KindOffer, KindCounterOffer:
		v := *e.Amount
		s.CurrentOffer = &v
		a := e.Actor
		s.LastOfferActor = &a
	case KindAccept:
		v := *s.CurrentOffer
		s.FinalPrice = &v
		s.Status = StatusAccepted
	case KindReject:
		s.Status = StatusRejected
	case KindClose:
		s.Status = StatusClosed
	case KindMessage:
		s.MessageCount++
	}
	s.Version = e.Sequence
	s.UpdatedAt = e.CreatedAt
}

// Reduce replays a ledger from sequence 1 onto a pristine snapshot of the
// session and returns the resulting summary. Replay is the recovery path:
// the stored summary must never diverge from it.
func Reduce(s *Session, entries []*Entry) *Session {
	out := s.Clone()
	out.Status = StatusActive
	out.CurrentOffer = nil
	out.FinalPrice = nil
	out.LastOfferActor = nil
	out.Version = 0
	out.MessageCount = 0
	out.UpdatedAt = s.CreatedAt
	for _, e := range entries {
		ApplyEntry(out, e)
	}
	return out
}
