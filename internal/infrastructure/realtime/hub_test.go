package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

func testEvent(sessionID uuid.UUID, seq int64) *negotiation.Event {
	return &negotiation.Event{
		EventID:   fmt.Sprintf("ev-%d", seq),
		SessionID: sessionID,
		Sequence:  seq,
		Kind:      negotiation.KindOffer,
		Actor:     negotiation.ActorBuyer,
		Timestamp: time.Now().UTC(),
	}
}

func TestPublishReachesRoomMembers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionID := uuid.New()
	buyer := uuid.New()
	seller := uuid.New()

	mBuyer := hub.Join(sessionID, buyer, "conn-b")
	mSeller := hub.Join(sessionID, seller, "conn-s")

	hub.Publish(sessionID, testEvent(sessionID, 1))

	for _, m := range []*Member{mBuyer, mSeller} {
		select {
		case ev := <-m.Events:
			assert.EqualValues(t, 1, ev.Sequence)
		default:
			t.Fatalf("member %s received nothing", m.ConnID)
		}
	}
}

func TestPublishDoesNotCrossSessions(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := uuid.New()
	b := uuid.New()
	m := hub.Join(b, uuid.New(), "conn-1")

	hub.Publish(a, testEvent(a, 1))

	select {
	case ev := <-m.Events:
		t.Fatalf("unexpected event %d for other session", ev.Sequence)
	default:
	}
}

func TestSlowMemberDroppedOthersUnaffected(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionID := uuid.New()
	slow := hub.Join(sessionID, uuid.New(), "conn-slow")
	fast := hub.Join(sessionID, uuid.New(), "conn-fast")

	// Fill the slow member's queue without draining it, then overflow.
	for i := 1; i <= memberBuffer+1; i++ {
		hub.Publish(sessionID, testEvent(sessionID, int64(i)))
		// Keep the fast member drained so only the slow one backs up.
		<-fast.Events
	}

	assert.Equal(t, 1, hub.RoomSize(sessionID))
	// The slow member's channel is closed after draining its backlog.
	drained := 0
	for range slow.Events {
		drained++
	}
	assert.Equal(t, memberBuffer, drained)

	// The surviving member keeps receiving.
	hub.Publish(sessionID, testEvent(sessionID, memberBuffer+2))
	select {
	case ev := <-fast.Events:
		assert.EqualValues(t, memberBuffer+2, ev.Sequence)
	default:
		t.Fatal("fast member stopped receiving")
	}
}

func TestIsConnected(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionID := uuid.New()
	userID := uuid.New()

	assert.False(t, hub.IsConnected(sessionID, userID))
	hub.Join(sessionID, userID, "conn-1")
	assert.True(t, hub.IsConnected(sessionID, userID))
	hub.Leave(sessionID, "conn-1")
	assert.False(t, hub.IsConnected(sessionID, userID))
	assert.Equal(t, 0, hub.RoomSize(sessionID))
}

func TestLeaveClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionID := uuid.New()
	m := hub.Join(sessionID, uuid.New(), "conn-1")

	hub.Leave(sessionID, "conn-1")
	_, open := <-m.Events
	require.False(t, open)

	// A second leave for the same connection is a no-op.
	hub.Leave(sessionID, "conn-1")
}

func TestStop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	m1 := hub.Join(uuid.New(), uuid.New(), "c1")
	m2 := hub.Join(uuid.New(), uuid.New(), "c2")

	hub.Stop()

	_, open := <-m1.Events
	assert.False(t, open)
	_, open = <-m2.Events
	assert.False(t, open)
}
