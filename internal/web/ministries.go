package web

import (
	"errors"
	"net/http"
	"strings"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

// publicMinistry hides leader and status details from visitors.
type publicMinistry struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	MeetingInfo  string `json:"meetingInfo"`
	Category     string `json:"category"`
}

func toPublicMinistry(m model.Ministry) publicMinistry {
	return publicMinistry{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		ImageURL:     m.ImageURL,
		ContactName:  m.ContactName,
		ContactEmail: m.ContactEmail,
		MeetingInfo:  m.MeetingInfo,
		Category:     m.Category,
	}
}

// GET /api/ministries lists active ministries.
func (s *Server) handlePublicMinistries(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ministries.List(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]publicMinistry, 0, len(list))
	for _, m := range list {
		out = append(out, toPublicMinistry(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePublicMinistry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Ministries.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if m.Status == model.StatusInactive {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, toPublicMinistry(*m))
}

type ministryRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	MeetingInfo  string `json:"meetingInfo"`
	Category     string `json:"category"`
	Status       string `json:"status"`
}

func (req ministryRequest) apply(m *model.Ministry) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Invalid("name", "is required")
	}
	status, err := parseStatus(req.Status, m.Status)
	if err != nil {
		return err
	}
	m.Name = name
	m.Description = strings.TrimSpace(req.Description)
	m.ImageURL = strings.TrimSpace(req.ImageURL)
	m.ContactName = strings.TrimSpace(req.ContactName)
	m.ContactEmail = strings.ToLower(strings.TrimSpace(req.ContactEmail))
	m.MeetingInfo = strings.TrimSpace(req.MeetingInfo)
	m.Category = strings.TrimSpace(req.Category)
	m.Status = status
	return nil
}

// GET /api/admin/ministries lists every ministry, inactive included.
func (s *Server) handleListMinistries(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ministries.List(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Ministry{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetMinistry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Ministries.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMinistry(w http.ResponseWriter, r *http.Request) {
	var req ministryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	var m model.Ministry
	if err := req.apply(&m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Ministries.Create(r.Context(), &m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMinistry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Ministries.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req ministryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := req.apply(m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Ministries.Update(r.Context(), m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeactivateMinistry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Ministries.SetStatus(r.Context(), id, model.StatusInactive); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "status": model.StatusInactive})
}

type leaderRequest struct {
	MemberID uint   `json:"memberId"`
	Role     string `json:"role"`
}

// POST /api/admin/ministries/{id}/leaders
func (s *Server) handleAddLeader(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req leaderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.MemberID == 0 {
		writeServiceError(w, r, model.Invalid("memberId", "is required"))
		return
	}
	if _, err := s.deps.Ministries.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := s.deps.Members.Get(r.Context(), req.MemberID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = model.Invalid("memberId", "unknown member %d", req.MemberID)
		}
		writeServiceError(w, r, err)
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "leader"
	}
	if err := s.deps.Ministries.AddLeader(r.Context(), id, req.MemberID, role); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Ministries.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type specialTypeRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	ContactPerson string `json:"contactPerson"`
	ContactEmail  string `json:"contactEmail"`
}

func (s *Server) handleListSpecialTypes(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.SpecialTypes.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.SpecialEventType{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSpecialType(w http.ResponseWriter, r *http.Request) {
	var req specialTypeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeServiceError(w, r, model.Invalid("name", "is required"))
		return
	}
	t := model.SpecialEventType{
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		ImageURL:      strings.TrimSpace(req.ImageURL),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		ContactEmail:  strings.ToLower(strings.TrimSpace(req.ContactEmail)),
	}
	if err := s.deps.SpecialTypes.Create(r.Context(), &t); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
