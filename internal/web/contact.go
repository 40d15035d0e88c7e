package web

import (
	"net/http"

	"churchsite/internal/model"
	"churchsite/internal/notify"
)

type messageAccepted struct {
	ID       string `json:"id"`
	Delivery string `json:"delivery"`
}

// POST /api/contact
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	msg, err := s.deps.Notify.Contact(r.Context(), req)
	s.writeAccepted(w, r, msg, err)
}

// POST /api/ministries/{id}/inquiry
func (s *Server) handleInquiry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req notify.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	msg, err := s.deps.Notify.MinistryInquiry(r.Context(), id, req)
	s.writeAccepted(w, r, msg, err)
}

// writeAccepted answers 202 once the message is stored, whether or not
// mail delivery succeeded.
func (s *Server) writeAccepted(w http.ResponseWriter, r *http.Request, msg *model.ContactMessage, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageAccepted{ID: msg.ID, Delivery: msg.Delivery})
}
