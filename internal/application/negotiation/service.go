package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/identity"
	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
	"github.com/bargain-hub/bargain-hub/internal/domain/product"
)

// Notifier hands a committed ledger entry to the asynchronous delivery path
// for an offline participant.
type Notifier interface {
	Enqueue(ctx context.Context, session *negotiation.Session, entry *negotiation.Entry, recipientID uuid.UUID) error
}

// Service owns the negotiation state machine: it validates actions, commits
// them to the ledger under optimistic concurrency, and fans committed entries
// out to the realtime room and the notification path. A committed action never
// fails because of a delivery side effect.
type Service struct {
	ledger      negotiation.Ledger
	cache       negotiation.SummaryCache
	catalog     product.Catalog
	verifier    identity.Verifier
	broadcaster negotiation.Broadcaster
	notifier    Notifier
	orderEvents negotiation.OrderEvents
	logger      zerolog.Logger
}

func NewService(
	ledger negotiation.Ledger,
	cache negotiation.SummaryCache,
	catalog product.Catalog,
	verifier identity.Verifier,
	broadcaster negotiation.Broadcaster,
	notifier Notifier,
	orderEvents negotiation.OrderEvents,
	logger zerolog.Logger,
) *Service {
	return &Service{
		ledger:      ledger,
		cache:       cache,
		catalog:     catalog,
		verifier:    verifier,
		broadcaster: broadcaster,
		notifier:    notifier,
		orderEvents: orderEvents,
		logger:      logger.With().Str("service", "negotiation").Logger(),
	}
}

// CreateSessionInput starts a negotiation on a product listing.
type CreateSessionInput struct {
	ProductID   uuid.UUID
	BuyerID     uuid.UUID
	OfferPolicy *string
}

// CreateSession snapshots the listed price and opens an Active session bound
// to the buyer-seller-product triple. At most one Active session exists per
// triple.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*negotiation.Session, error) {
	if in.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id is required", negotiation.ErrValidation)
	}
	if in.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("%w: buyer_id is required", negotiation.ErrValidation)
	}
	if err := s.verifier.VerifyUser(ctx, in.BuyerID); err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			return nil, fmt.Errorf("%w: unknown buyer", negotiation.ErrNotFound)
		}
		return nil, err
	}

	listing, err := s.catalog.GetListing(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrListingNotFound) {
			return nil, fmt.Errorf("%w: unknown product", negotiation.ErrNotFound)
		}
		return nil, err
	}
	if listing.SellerID == in.BuyerID {
		return nil, fmt.Errorf("%w: buyer cannot negotiate own listing", negotiation.ErrValidation)
	}

	existing, err := s.ledger.FindActive(ctx, in.ProductID, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: negotiation already open for this listing", negotiation.ErrValidation)
	}

	session := negotiation.NewSession(in.ProductID, in.BuyerID, listing.SellerID, listing.Price, ulid.Make().String())
	if in.OfferPolicy != nil {
		policy := strings.TrimSpace(*in.OfferPolicy)
		if policy != "" {
			if _, err := negotiation.EvaluateOfferPolicy(policy, listing.Price, listing.Price, nil); err != nil {
				return nil, err
			}
			session.OfferPolicy = &policy
		}
	}

	if err := s.ledger.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, session)

	s.logger.Info().
		Str("session_id", session.SessionID.String()).
		Str("product_id", session.ProductID.String()).
		Str("trace_id", session.TraceID).
		Float64("initial_price", session.InitialPrice).
		Msg("negotiation session created")
	return session, nil
}

// SubmitOffer appends an offer or counter-offer at the expected version.
func (s *Service) SubmitOffer(ctx context.Context, sessionID, userID uuid.UUID, amount float64, expectedVersion int64) (*negotiation.Session, error) {
	return s.appendAs(ctx, sessionID, userID, expectedVersion, func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error) {
		if actor == negotiation.ActorBuyer && sess.OfferPolicy != nil {
			ok, err := negotiation.EvaluateOfferPolicy(*sess.OfferPolicy, amount, sess.InitialPrice, sess.CurrentOffer)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: offer rejected by seller policy", negotiation.ErrValidation)
			}
		}
		a := amount
		return &negotiation.Entry{Kind: sess.OfferKind(), Actor: actor, Amount: &a}, nil
	})
}

// AcceptOffer accepts the outstanding counterpart offer, fixing the final
// price and terminating the session.
func (s *Service) AcceptOffer(ctx context.Context, sessionID, userID uuid.UUID, expectedVersion int64) (*negotiation.Session, error) {
	return s.appendAs(ctx, sessionID, userID, expectedVersion, func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error) {
		return &negotiation.Entry{Kind: negotiation.KindAccept, Actor: actor}, nil
	})
}

// RejectOffer rejects the outstanding offer and terminates the session.
func (s *Service) RejectOffer(ctx context.Context, sessionID, userID uuid.UUID, expectedVersion int64) (*negotiation.Session, error) {
	return s.appendAs(ctx, sessionID, userID, expectedVersion, func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error) {
		return &negotiation.Entry{Kind: negotiation.KindReject, Actor: actor}, nil
	})
}

// CloseSession cancels an Active session on behalf of a participant.
func (s *Service) CloseSession(ctx context.Context, sessionID, userID uuid.UUID, expectedVersion int64) (*negotiation.Session, error) {
	return s.appendAs(ctx, sessionID, userID, expectedVersion, func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error) {
		return &negotiation.Entry{Kind: negotiation.KindClose, Actor: actor}, nil
	})
}

// PostMessage appends a conversational entry.
func (s *Service) PostMessage(ctx context.Context, sessionID, userID uuid.UUID, text string, expectedVersion int64) (*negotiation.Session, error) {
	return s.appendAs(ctx, sessionID, userID, expectedVersion, func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error) {
		msg := strings.TrimSpace(text)
		if msg == "" {
			return nil, fmt.Errorf("%w: text is required", negotiation.ErrValidation)
		}
		return &negotiation.Entry{Kind: negotiation.KindMessage, Actor: actor, Text: &msg}, nil
	})
}

// CloseIdle closes an Active session on behalf of the system, using the
// ledger's current version. On a conflict the latest version is retried once;
// a second conflict means a user action is racing, so the session is left for
// the next sweep.
func (s *Service) CloseIdle(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := s.ledger.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, negotiation.ErrNotFound
		}
		if sess.IsTerminal() {
			return sess, nil
		}
		next, err := s.commit(ctx, sess, &negotiation.Entry{Kind: negotiation.KindClose, Actor: negotiation.ActorSystem}, sess.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, negotiation.ErrConflict) {
			return nil, err
		}
	}
	return nil, negotiation.ErrConflict
}

// GetSession returns the session summary to a bound participant.
func (s *Service) GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*negotiation.Session, error) {
	sess, err := s.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, negotiation.ErrNotFound
	}
	if _, err := sess.ActorFor(userID); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetTimeline returns the ledger tail after a sequence, for pagination and
// reconnect resynchronization.
func (s *Service) GetTimeline(ctx context.Context, sessionID, userID uuid.UUID, afterSeq int64, limit int) ([]*negotiation.Entry, error) {
	if _, err := s.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.ledger.ListEntries(ctx, sessionID, afterSeq, limit)
}

// ListForParticipant lists a user's negotiations, serving the first page from
// the summary cache when possible. The cache is a bounded-staleness read
// accelerator; the ledger remains the source of truth.
func (s *Service) ListForParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	if offset == 0 {
		if cached, ok := s.cache.GetParticipant(ctx, userID); ok {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		}
	}
	sessions, err := s.ledger.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		if err := s.cache.SetParticipant(ctx, userID, sessions); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("summary cache write failed")
		}
	}
	return sessions, nil
}

// ListForProduct lists sessions negotiating one listing.
func (s *Service) ListForProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	return s.ledger.ListByProduct(ctx, productID, limit, offset)
}

// ReplaySession rebuilds the summary by replaying the full ledger from
// sequence 1. The result must match the stored summary exactly; it is the
// audit and recovery path.
func (s *Service) ReplaySession(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error) {
	sess, err := s.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, negotiation.ErrNotFound
	}
	var entries []*negotiation.Entry
	var after int64
	for {
		batch, err := s.ledger.ListEntries(ctx, sessionID, after, 500)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		if len(batch) < 500 {
			break
		}
		after = batch[len(batch)-1].Sequence
	}
	return negotiation.Reduce(sess, entries), nil
}

func (s *Service) appendAs(
	ctx context.Context,
	sessionID, userID uuid.UUID,
	expectedVersion int64,
	build func(sess *negotiation.Session, actor negotiation.Actor) (*negotiation.Entry, error),
) (*negotiation.Session, error) {
	sess, err := s.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, negotiation.ErrNotFound
	}
	actor, err := sess.ActorFor(userID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != sess.Version {
		return nil, negotiation.ErrConflict
	}
	entry, err := build(sess, actor)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, sess, entry, expectedVersion)
}

// commit validates the entry against the loaded state, projects the next
// summary from it, and appends both atomically. The ledger's version check is
// the authoritative CAS; the in-memory check above it only short-circuits
// obviously stale callers.
func (s *Service) commit(ctx context.Context, sess *negotiation.Session, entry *negotiation.Entry, expectedVersion int64) (*negotiation.Session, error) {
	entry.SessionID = sess.SessionID
	entry.Sequence = expectedVersion + 1
	entry.CreatedAt = time.Now().UTC()
	if err := negotiation.ValidateEntry(sess, entry); err != nil {
		return nil, err
	}

	next := sess.Clone()
	negotiation.ApplyEntry(next, entry)

	if err := s.ledger.Append(ctx, next, entry, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sess.SessionID.String()).
		Str("trace_id", sess.TraceID).
		Str("kind", string(entry.Kind)).
		Str("actor", string(entry.Actor)).
		Int64("sequence", entry.Sequence).
		Msg("ledger entry committed")

	s.fanout(ctx, next, entry)
	return next, nil
}

// fanout performs the post-commit side effects. Failures here are logged and
// retried out of band; they never roll back the committed append.
func (s *Service) fanout(ctx context.Context, sess *negotiation.Session, entry *negotiation.Entry) {
	event := &negotiation.Event{
		EventID:   ulid.Make().String(),
		SessionID: sess.SessionID,
		Sequence:  entry.Sequence,
		Kind:      entry.Kind,
		Amount:    entry.Amount,
		Text:      entry.Text,
		Actor:     entry.Actor,
		Timestamp: entry.CreatedAt,
	}
	s.broadcaster.Publish(sess.SessionID, event)

	for _, recipient := range s.recipients(sess, entry.Actor) {
		if s.broadcaster.IsConnected(sess.SessionID, recipient) {
			continue
		}
		if err := s.notifier.Enqueue(ctx, sess, entry, recipient); err != nil {
			s.logger.Warn().Err(err).
				Str("session_id", sess.SessionID.String()).
				Int64("sequence", entry.Sequence).
				Str("recipient_id", recipient.String()).
				Msg("notification enqueue failed")
		}
	}

	s.invalidateCache(ctx, sess)

	if entry.Kind == negotiation.KindAccept {
		accepted := &negotiation.AcceptedEvent{
			SessionID:  sess.SessionID,
			ProductID:  sess.ProductID,
			BuyerID:    sess.BuyerID,
			SellerID:   sess.SellerID,
			FinalPrice: *sess.FinalPrice,
		}
		if err := s.orderEvents.NegotiationAccepted(ctx, accepted); err != nil {
			s.logger.Error().Err(err).
				Str("session_id", sess.SessionID.String()).
				Msg("accepted event publish failed")
		}
	}
}

// recipients returns who should be notified about an entry: the counterpart
// of a user action, or both parties for a system close.
func (s *Service) recipients(sess *negotiation.Session, actor negotiation.Actor) []uuid.UUID {
	if actor == negotiation.ActorSystem {
		return []uuid.UUID{sess.BuyerID, sess.SellerID}
	}
	return []uuid.UUID{sess.Counterpart(actor)}
}

func (s *Service) invalidateCache(ctx context.Context, sess *negotiation.Session) {
	if err := s.cache.Invalidate(ctx, sess.BuyerID, sess.SellerID); err != nil {
		s.logger.Warn().Err(err).
			Str("session_id", sess.SessionID.String()).
			Msg("summary cache invalidation failed")
	}
}
