package httpapi

import (
	"net/http"
)

func (s *Server) listMyNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	ns, err := s.notificationSvc.ListForRecipient(r.Context(), principalFromContext(r.Context()), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": ns})
}
