package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appNegotiation "github.com/bargain-hub/bargain-hub/internal/application/negotiation"
	appNotification "github.com/bargain-hub/bargain-hub/internal/application/notification"
	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
	"github.com/bargain-hub/bargain-hub/internal/infrastructure/realtime"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	negotiationSvc  *appNegotiation.Service
	notificationSvc *appNotification.Service
	hub             *realtime.Hub
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	notificationSvc *appNotification.Service,
	hub *realtime.Hub,
) *Server {
	return &Server{
		negotiationSvc:  negotiationSvc,
		notificationSvc: notificationSvc,
		hub:             hub,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requirePrincipal)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.createSession)
				r.Get("/", s.listMySessions)
				r.Get("/{sessionId}", s.getSession)
				r.Get("/{sessionId}/entries", s.listEntries)
				r.Post("/{sessionId}/offers", s.submitOffer)
				r.Post("/{sessionId}/accept", s.acceptOffer)
				r.Post("/{sessionId}/reject", s.rejectOffer)
				r.Post("/{sessionId}/close", s.closeSession)
				r.Post("/{sessionId}/messages", s.postMessage)
				r.Get("/{sessionId}/stream", s.streamSession)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.listMyNotifications)
			})

			r.Get("/products/{productId}/sessions", s.listProductSessions)
		})

		r.Get("/healthz", s.health)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps the negotiation error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, negotiation.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, negotiation.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, negotiation.ErrInvalidActor):
		respondError(w, http.StatusForbidden, "INVALID_ACTOR", err.Error())
	case errors.Is(err, negotiation.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, negotiation.ErrValidation):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func parseUUID(val string) (uuid.UUID, error) {
	return uuid.Parse(val)
}

// versionedAction handles the accept/reject/close family: same request shape,
// same response shape, different service call.
func (s *Server) versionedAction(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, sessionID, userID uuid.UUID, expectedVersion int64) (*negotiation.Session, error),
) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	var req versionedRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	sess, err := fn(r.Context(), sessionID, principalFromContext(r.Context()), req.ExpectedVersion)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseInt64Query(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
