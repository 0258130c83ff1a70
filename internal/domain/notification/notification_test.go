package notification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

func testNotification(t *testing.T) *Notification {
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
	return New(session, entry, session.SellerID)
}

func TestNew(t *testing.T) {
	session := negotiation.NewSession(uuid.New(), uuid.New(), uuid.New(), 100, "trace-1")
	amount := 80.0
	entry := &negotiation.Entry{
		SessionID: session.SessionID,
		Sequence:  3,
		Actor:     negotiation.ActorBuyer,
		Kind:      negotiation.KindCounterOffer,
		Amount:    &amount,
		CreatedAt: time.Now().UTC(),
	}

	n := New(session, entry, session.SellerID)

	require.NotNil(t, n)
	assert.NotEqual(t, uuid.Nil, n.NotificationID)
	assert.Equal(t, session.SessionID, n.SessionID)
	assert.EqualValues(t, 3, n.Sequence)
	assert.Equal(t, session.SellerID, n.RecipientID)
	assert.Equal(t, negotiation.KindCounterOffer, n.Kind)
	assert.Equal(t, "new offer: 80.00", n.Summary)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, 0, n.RetryCount)
	assert.Equal(t, defaultMaxRetries, n.MaxRetries)
	assert.False(t, n.NextAttemptAt.After(time.Now().UTC()))
}

func TestSummarize(t *testing.T) {
	amount := 42.0
	cases := []struct {
		kind negotiation.Kind
		want string
	}{
		{negotiation.KindOffer, "new offer: 42.00"},
		{negotiation.KindCounterOffer, "new offer: 42.00"},
		{negotiation.KindAccept, "offer accepted"},
		{negotiation.KindReject, "offer rejected"},
		{negotiation.KindClose, "negotiation closed"},
		{negotiation.KindMessage, "new message"},
	}
	for _, tc := range cases {
		e := &negotiation.Entry{Kind: tc.kind, Amount: &amount}
		assert.Equal(t, tc.want, summarize(e), "kind %s", tc.kind)
	}
}

func TestLifecycle(t *testing.T) {
	n := testNotification(t)

	require.NoError(t, n.MarkSent())
	assert.Equal(t, StatusSent, n.Status)
	require.NotNil(t, n.SentAt)

	require.NoError(t, n.MarkDelivered())
	assert.Equal(t, StatusDelivered, n.Status)
	assert.True(t, n.IsTerminal())

	assert.ErrorIs(t, n.MarkSent(), ErrInvalidTransition)
	assert.ErrorIs(t, n.MarkFailed("late"), ErrInvalidTransition)
}

func TestMarkFailedSchedulesBackoff(t *testing.T) {
	n := testNotification(t)
	require.NoError(t, n.MarkSent())

	before := time.Now().UTC()
	require.NoError(t, n.MarkFailed("connection refused"))

	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	require.NotNil(t, n.LastError)
	assert.Equal(t, "connection refused", *n.LastError)
	assert.True(t, n.CanRetry())
	// First retry backs off by the base interval.
	assert.WithinDuration(t, before.Add(backoffBase), n.NextAttemptAt, 2*time.Second)

	require.NoError(t, n.MarkSent())
	require.NoError(t, n.MarkFailed("connection refused"))
	assert.WithinDuration(t, time.Now().UTC().Add(2*backoffBase), n.NextAttemptAt, 2*time.Second)
}

func TestRetriesExhaustedExpires(t *testing.T) {
	n := testNotification(t)
	for i := 0; i < n.MaxRetries; i++ {
		require.NoError(t, n.MarkSent())
		require.NoError(t, n.MarkFailed("unreachable"))
	}

	assert.Equal(t, StatusExpired, n.Status)
	assert.True(t, n.IsTerminal())
	assert.False(t, n.CanRetry())
	assert.ErrorIs(t, n.MarkSent(), ErrInvalidTransition)
}
