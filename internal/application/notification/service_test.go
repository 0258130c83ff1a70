package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
	"github.com/bargain-hub/bargain-hub/internal/domain/notification"
)

type dedupeKey struct {
	sessionID   uuid.UUID
	sequence    int64
	recipientID uuid.UUID
}

type memRepo struct {
	mu   sync.Mutex
	rows map[dedupeKey]*notification.Notification
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[dedupeKey]*notification.Notification)}
}

func (r *memRepo) key(n *notification.Notification) dedupeKey {
	return dedupeKey{sessionID: n.SessionID, sequence: n.Sequence, recipientID: n.RecipientID}
}

func (r *memRepo) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[r.key(n)]; exists {
		return nil
	}
	c := *n
	r.rows[r.key(n)] = &c
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, notificationID uuid.UUID) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.NotificationID == notificationID {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memRepo) Update(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *n
	r.rows[r.key(n)] = &c
	return nil
}

func (r *memRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.rows {
		if (n.Status == notification.StatusPending || n.Status == notification.StatusFailed) && !n.NextAttemptAt.After(now) {
			c := *n
			out = append(out, &c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.rows {
		if n.RecipientID == recipientID {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []*notification.Notification
	fails int
}

func (s *fakeSender) Send(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("endpoint unreachable")
	}
	c := *n
	s.sent = append(s.sent, &c)
	return nil
}

func testSessionEntry(t *testing.T) (*negotiation.Session, *negotiation.Entry) {
	t.Helper()
	session := negotiation.NewSession(uuid.New(), uuid.New(), uuid.New(), 100, "trace-1")
	amount := 80.0
	entry := &negotiation.Entry{
		SessionID: session.SessionID,
		Sequence:  1,
		Actor:     negotiation.ActorBuyer,
		Kind:      negotiation.KindOffer,
		Amount:    &amount,
		CreatedAt: time.Now().UTC(),
	}
	return session, entry
}

func TestEnqueueIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeSender{}, zerolog.Nop())
	session, entry := testSessionEntry(t)

	require.NoError(t, svc.Enqueue(context.Background(), session, entry, session.SellerID))
	require.NoError(t, svc.Enqueue(context.Background(), session, entry, session.SellerID))

	assert.Len(t, repo.rows, 1)
}

func TestProcessDueDelivers(t *testing.T) {
	repo := newMemRepo()
	sender := &fakeSender{}
	svc := NewService(repo, sender, zerolog.Nop())
	session, entry := testSessionEntry(t)
	require.NoError(t, svc.Enqueue(context.Background(), session, entry, session.SellerID))

	delivered, err := svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "new offer: 80.00", sender.sent[0].Summary)

	// Delivered rows are no longer due.
	delivered, err = svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestProcessDueRetriesWithBackoff(t *testing.T) {
	repo := newMemRepo()
	sender := &fakeSender{fails: 1}
	svc := NewService(repo, sender, zerolog.Nop())
	session, entry := testSessionEntry(t)
	require.NoError(t, svc.Enqueue(context.Background(), session, entry, session.SellerID))

	delivered, err := svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	stored, err := repo.ListByRecipient(context.Background(), session.SellerID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, notification.StatusFailed, stored[0].Status)
	assert.Equal(t, 1, stored[0].RetryCount)
	assert.True(t, stored[0].NextAttemptAt.After(time.Now().UTC()))

	// Not due again until the backoff elapses.
	delivered, err = svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	// Force the schedule and the retry succeeds.
	stored[0].NextAttemptAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, repo.Update(context.Background(), stored[0]))
	delivered, err = svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestRetriesExhausted(t *testing.T) {
	repo := newMemRepo()
	sender := &fakeSender{fails: 100}
	svc := NewService(repo, sender, zerolog.Nop())
	session, entry := testSessionEntry(t)
	require.NoError(t, svc.Enqueue(context.Background(), session, entry, session.SellerID))

	for i := 0; i < 10; i++ {
		_, err := svc.ProcessDue(context.Background(), 10)
		require.NoError(t, err)
		stored, err := repo.ListByRecipient(context.Background(), session.SellerID, 10, 0)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		if stored[0].IsTerminal() {
			break
		}
		stored[0].NextAttemptAt = time.Now().UTC().Add(-time.Second)
		require.NoError(t, repo.Update(context.Background(), stored[0]))
	}

	stored, err := repo.ListByRecipient(context.Background(), session.SellerID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusExpired, stored[0].Status)
	assert.Empty(t, sender.sent)
}
