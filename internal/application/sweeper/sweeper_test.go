package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// idleLedger serves only the sweeper's listing needs.
type idleLedger struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*negotiation.Session
}

func newIdleLedger() *idleLedger {
	return &idleLedger{sessions: make(map[uuid.UUID]*negotiation.Session)}
}

func (l *idleLedger) add(idleFor time.Duration) *negotiation.Session {
	s := negotiation.NewSession(uuid.New(), uuid.New(), uuid.New(), 100, "trace")
	s.UpdatedAt = time.Now().UTC().Add(-idleFor)
	l.sessions[s.SessionID] = s
	return s
}

func (l *idleLedger) CreateSession(ctx context.Context, s *negotiation.Session) error { return nil }

func (l *idleLedger) GetSession(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (l *idleLedger) FindActive(ctx context.Context, productID, buyerID uuid.UUID) (*negotiation.Session, error) {
	return nil, nil
}

func (l *idleLedger) Append(ctx context.Context, next *negotiation.Session, entry *negotiation.Entry, expectedVersion int64) error {
	return nil
}

func (l *idleLedger) ListEntries(ctx context.Context, sessionID uuid.UUID, afterSeq int64, limit int) ([]*negotiation.Entry, error) {
	return nil, nil
}

func (l *idleLedger) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	return nil, nil
}

func (l *idleLedger) ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*negotiation.Session, error) {
	return nil, nil
}

func (l *idleLedger) ListIdleActive(ctx context.Context, olderThan time.Time, limit int) ([]*negotiation.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*negotiation.Session
	for _, s := range l.sessions {
		if !s.IsTerminal() && s.UpdatedAt.Before(olderThan) {
			out = append(out, s.Clone())
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeCloser closes sessions against the shared ledger map, mimicking the
// negotiation service's system close.
type fakeCloser struct {
	ledger    *idleLedger
	conflicts map[uuid.UUID]bool
	calls     int
}

func (c *fakeCloser) CloseIdle(ctx context.Context, sessionID uuid.UUID) (*negotiation.Session, error) {
	c.calls++
	if c.conflicts[sessionID] {
		return nil, negotiation.ErrConflict
	}
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()
	s := c.ledger.sessions[sessionID]
	if s == nil {
		return nil, negotiation.ErrNotFound
	}
	if s.IsTerminal() {
		return s.Clone(), nil
	}
	s.Status = negotiation.StatusClosed
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	return s.Clone(), nil
}

func TestSweepClosesIdleSessions(t *testing.T) {
	ledger := newIdleLedger()
	fresh := ledger.add(time.Minute)
	stale := ledger.add(2 * time.Hour)
	closer := &fakeCloser{ledger: ledger, conflicts: map[uuid.UUID]bool{}}
	sw := New(ledger, closer, time.Hour, zerolog.Nop())

	closed, err := sw.SweepOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := ledger.GetSession(context.Background(), stale.SessionID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusClosed, got.Status)

	got, err = ledger.GetSession(context.Background(), fresh.SessionID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusActive, got.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	ledger := newIdleLedger()
	ledger.add(2 * time.Hour)
	closer := &fakeCloser{ledger: ledger, conflicts: map[uuid.UUID]bool{}}
	sw := New(ledger, closer, time.Hour, zerolog.Nop())

	closed, err := sw.SweepOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	// Second pass finds nothing Active, so it closes nothing.
	closed, err = sw.SweepOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestSweepToleratesConflicts(t *testing.T) {
	ledger := newIdleLedger()
	racing := ledger.add(2 * time.Hour)
	calm := ledger.add(3 * time.Hour)
	closer := &fakeCloser{ledger: ledger, conflicts: map[uuid.UUID]bool{racing.SessionID: true}}
	sw := New(ledger, closer, time.Hour, zerolog.Nop())

	closed, err := sw.SweepOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := ledger.GetSession(context.Background(), calm.SessionID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusClosed, got.Status)
}
