package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// memberBuffer bounds each member's outbound queue. A member that falls this
// far behind is dropped and must resynchronize by sequence on reconnect.
const memberBuffer = 64

// Member is one connected participant in a session room.
type Member struct {
	ConnID    string
	SessionID uuid.UUID
	UserID    uuid.UUID
	Events    chan *negotiation.Event

	closeOnce sync.Once
}

// Close closes the member's event channel. Safe to call more than once.
func (m *Member) Close() {
	m.closeOnce.Do(func() { close(m.Events) })
}

// Hub maintains a room per session with the currently connected buyer and
// seller channels. Publishing never blocks: a full member queue causes that
// member alone to be dropped.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[string]*Member
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Member),
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

// Join registers a connection into a session's room.
func (h *Hub) Join(sessionID, userID uuid.UUID, connID string) *Member {
	m := &Member{
		ConnID:    connID,
		SessionID: sessionID,
		UserID:    userID,
		Events:    make(chan *negotiation.Event, memberBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*Member)
		h.rooms[sessionID] = room
	}
	room[connID] = m
	return m
}

// Leave removes a connection from its room and closes its channel.
func (h *Hub) Leave(sessionID uuid.UUID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if m, ok := room[connID]; ok {
		m.Close()
		delete(room, connID)
	}
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// Publish fans an event out to every member of the session's room. Delivery is
// at-least-once to live members; a member with a full queue is dropped.
func (h *Hub) Publish(sessionID uuid.UUID, event *negotiation.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	for connID, m := range room {
		select {
		case m.Events <- event:
		default:
			h.logger.Warn().
				Str("session_id", sessionID.String()).
				Str("conn_id", connID).
				Int64("sequence", event.Sequence).
				Msg("member queue full, dropping connection")
			m.Close()
			delete(room, connID)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// IsConnected reports whether a participant has at least one live connection
// in the session's room.
func (h *Hub) IsConnected(sessionID, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range h.rooms[sessionID] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// RoomSize returns the number of connections in a session's room.
func (h *Hub) RoomSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Stop closes every member channel and empties all rooms.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, room := range h.rooms {
		for connID, m := range room {
			m.Close()
			delete(room, connID)
		}
		delete(h.rooms, sessionID)
	}
}
