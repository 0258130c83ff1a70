package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// SessionCloser is the system-actor close path of the negotiation service.
type SessionCloser interface {
	CloseIdle(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error)
}

// Sweeper closes Active sessions idle beyond the configured timeout. It goes
// through the same CAS close path as user actions, so a racing user action
// simply wins or loses like any other concurrent operation, and re-running a
// sweep over already-terminal sessions is a no-op.
type Sweeper struct {
	ledger      negotiation.Ledger
	closer      SessionCloser
	idleTimeout time.Duration
	logger      zerolog.Logger
}

func New(ledger negotiation.Ledger, closer SessionCloser, idleTimeout time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		ledger:      ledger,
		closer:      closer,
		idleTimeout: idleTimeout,
		logger:      logger.With().Str("service", "sweeper").Logger(),
	}
}

// SweepOnce closes up to limit idle sessions and returns how many it closed.
func (s *Sweeper) SweepOnce(ctx context.Context, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-s.idleTimeout)
	idle, err := s.ledger.ListIdleActive(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	closed := 0
	for _, sess := range idle {
		result, err := s.closer.CloseIdle(ctx, sess.SessionID)
		if err != nil {
			if errors.Is(err, negotiation.ErrConflict) {
				// A user action moved the session forward mid-sweep.
				continue
			}
			s.logger.Warn().Err(err).
				Str("session_id", sess.SessionID.String()).
				Msg("idle close failed")
			continue
		}
		if result.Status == negotiation.StatusClosed && result.Version == sess.Version+1 {
			closed++
			s.logger.Info().
				Str("session_id", sess.SessionID.String()).
				Time("last_activity", sess.UpdatedAt).
				Msg("idle session closed")
		}
	}
	return closed, nil
}

// Run sweeps on the given interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, limit); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
