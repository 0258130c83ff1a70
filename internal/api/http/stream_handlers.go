package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// streamSession attaches the caller to the session's room over SSE. Events
// missed while disconnected are replayed first via ?after=<sequence>, so a
// client that was dropped for falling behind can resynchronize.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	userID := principalFromContext(r.Context())

	// Participant check happens before the room join.
	sess, err := s.negotiationSvc.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	connID := middleware.GetReqID(r.Context())
	member := s.hub.Join(sessionID, userID, connID)
	defer s.hub.Leave(sessionID, connID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Replay the backlog the client missed before switching to live events.
	// The fetch runs unconditionally after the room join: an entry committed
	// between the summary snapshot and the join is published to no member, so
	// only a by-sequence replay can surface it. Duplicates with the live
	// channel are possible; clients deduplicate by sequence.
	after := parseInt64Query(r, "after", sess.Version)
	entries, err := s.negotiationSvc.GetTimeline(r.Context(), sessionID, userID, after, 500)
	if err == nil {
		for _, e := range entries {
			writeSSE(w, flusher, entryToEvent(e))
		}
	}

	ctx := r.Context()
	for {
		select {
		case event, ok := <-member.Events:
			if !ok {
				return
			}
			writeSSE(w, flusher, event)
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event *negotiation.Event) {
	payload, _ := json.Marshal(event)
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}

// entryToEvent rebuilds a room event from a stored entry during replay.
// Clients deduplicate by sequence, so the fresh event id is harmless.
func entryToEvent(e *negotiation.Entry) *negotiation.Event {
	return &negotiation.Event{
		EventID:   ulid.Make().String(),
		SessionID: e.SessionID,
		Sequence:  e.Sequence,
		Kind:      e.Kind,
		Amount:    e.Amount,
		Text:      e.Text,
		Actor:     e.Actor,
		Timestamp: e.CreatedAt,
	}
}
