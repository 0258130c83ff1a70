package httpapi

import (
	"net/http"

	appNegotiation "github.com/bargain-hub/bargain-hub/internal/application/negotiation"
)

type createSessionRequest struct {
	ProductID   string  `json:"product_id"`
	OfferPolicy *string `json:"offer_policy,omitempty"`
}

type offerRequest struct {
	Amount          float64 `json:"amount"`
	ExpectedVersion int64   `json:"expected_version"`
}

type versionedRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

type messageRequest struct {
	Text            string `json:"text"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	productID, err := parseUUID(req.ProductID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid product_id")
		return
	}

	sess, err := s.negotiationSvc.CreateSession(r.Context(), appNegotiation.CreateSessionInput{
		ProductID:   productID,
		BuyerID:     principalFromContext(r.Context()),
		OfferPolicy: req.OfferPolicy,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	sess, err := s.negotiationSvc.GetSession(r.Context(), sessionID, principalFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) listMySessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	sessions, err := s.negotiationSvc.ListForParticipant(r.Context(), principalFromContext(r.Context()), limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) listProductSessions(w http.ResponseWriter, r *http.Request) {
	productID, err := parseUUIDParam(r, "productId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid productId")
		return
	}
	limit, offset := parseLimitOffset(r, 50, 200)
	sessions, err := s.negotiationSvc.ListForProduct(r.Context(), productID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	limit, _ := parseLimitOffset(r, 100, 500)
	after := parseInt64Query(r, "after", 0)
	entries, err := s.negotiationSvc.GetTimeline(r.Context(), sessionID, principalFromContext(r.Context()), after, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "entries": entries})
}

func (s *Server) submitOffer(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	var req offerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	sess, err := s.negotiationSvc.SubmitOffer(r.Context(), sessionID, principalFromContext(r.Context()), req.Amount, req.ExpectedVersion)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) acceptOffer(w http.ResponseWriter, r *http.Request) {
	s.versionedAction(w, r, s.negotiationSvc.AcceptOffer)
}

func (s *Server) rejectOffer(w http.ResponseWriter, r *http.Request) {
	s.versionedAction(w, r, s.negotiationSvc.RejectOffer)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	s.versionedAction(w, r, s.negotiationSvc.CloseSession)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseUUIDParam(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	sess, err := s.negotiationSvc.PostMessage(r.Context(), sessionID, principalFromContext(r.Context()), req.Text, req.ExpectedVersion)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}
