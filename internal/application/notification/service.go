package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
	"github.com/bargain-hub/bargain-hub/internal/domain/notification"
)

// Service is the asynchronous delivery path for participants who were not
// connected when a ledger entry committed. Enqueue is idempotent per
// (session, sequence, recipient); ProcessDue drains the pending/retry backlog
// from a background loop without ever touching the synchronous action path.
type Service struct {
	repo   notification.Repository
	sender notification.Sender
	logger zerolog.Logger
}

func NewService(repo notification.Repository, sender notification.Sender, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		logger: logger.With().Str("service", "notification").Logger(),
	}
}

// Enqueue records a pending notification for one ledger entry. Duplicate
// enqueues for the same entry and recipient are silent no-ops.
func (s *Service) Enqueue(ctx context.Context, session *negotiation.Session, entry *negotiation.Entry, recipientID uuid.UUID) error {
	n := notification.New(session, entry, recipientID)
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	s.logger.Debug().
		Str("notification_id", n.NotificationID.String()).
		Str("session_id", n.SessionID.String()).
		Int64("sequence", n.Sequence).
		Str("recipient_id", n.RecipientID.String()).
		Msg("notification enqueued")
	return nil
}

// ProcessDue attempts delivery for every due notification and returns how
// many were delivered. Failures are rescheduled with backoff until retries
// run out.
func (s *Service) ProcessDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListDue(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due notifications: %w", err)
	}

	delivered := 0
	for _, n := range due {
		if err := s.deliver(ctx, n); err != nil {
			s.logger.Warn().Err(err).
				Str("notification_id", n.NotificationID.String()).
				Int("retry_count", n.RetryCount).
				Msg("notification delivery failed")
			continue
		}
		delivered++
	}
	return delivered, nil
}

// deliver marks the notification sent before attempting delivery, so a crash
// between the two shows up as a SENT row to reconcile, never a duplicate.
func (s *Service) deliver(ctx context.Context, n *notification.Notification) error {
	if err := n.MarkSent(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, n); err != nil {
		return fmt.Errorf("failed to persist sent status: %w", err)
	}

	if sendErr := s.sender.Send(ctx, n); sendErr != nil {
		if err := n.MarkFailed(sendErr.Error()); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("failed to persist failed status: %w", err)
		}
		return fmt.Errorf("%w: %v", notification.ErrDeliveryFailed, sendErr)
	}

	if err := n.MarkDelivered(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, n); err != nil {
		return fmt.Errorf("failed to persist delivered status: %w", err)
	}

	s.logger.Info().
		Str("notification_id", n.NotificationID.String()).
		Str("session_id", n.SessionID.String()).
		Int64("sequence", n.Sequence).
		Msg("notification delivered")
	return nil
}

// ListForRecipient returns a participant's notification history.
func (s *Service) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*notification.Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, limit, offset)
}
