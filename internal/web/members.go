package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"churchsite/internal/database"
	"churchsite/internal/model"
	"churchsite/internal/repository"
)

type memberRequest struct {
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Birthday   *flexTime `json:"birthday"`
	JoinedOn   *flexTime `json:"joinedOn"`
	Address    string    `json:"address"`
	FamilyID   *uint     `json:"familyId"`
	FamilyRole string    `json:"familyRole"`
	Notes      string    `json:"notes"`
	Status     string    `json:"status"`
}

func (s *Server) applyMember(r *http.Request, req memberRequest, m *model.Member) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" {
		return model.Invalid("firstName", "is required")
	}
	if req.LastName == "" {
		return model.Invalid("lastName", "is required")
	}
	status, err := parseStatus(req.Status, m.Status)
	if err != nil {
		return err
	}
	if req.FamilyID != nil {
		if _, err := s.deps.Families.Get(r.Context(), *req.FamilyID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return model.Invalid("familyId", "unknown family %d", *req.FamilyID)
			}
			return err
		}
	}

	m.FirstName = req.FirstName
	m.LastName = req.LastName
	m.Email = strings.ToLower(strings.TrimSpace(req.Email))
	m.Phone = strings.TrimSpace(req.Phone)
	m.Birthday = req.Birthday.at(time.UTC, false)
	m.JoinedOn = req.JoinedOn.at(time.UTC, false)
	m.Address = strings.TrimSpace(req.Address)
	m.FamilyID = req.FamilyID
	m.FamilyRole = strings.TrimSpace(req.FamilyRole)
	m.Notes = req.Notes
	m.Status = status
	return nil
}

func parseStatus(s string, def model.Status) (model.Status, error) {
	switch model.Status(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		if def == "" {
			return model.StatusActive, nil
		}
		return def, nil
	case model.StatusActive:
		return model.StatusActive, nil
	case model.StatusInactive:
		return model.StatusInactive, nil
	default:
		return "", model.Invalid("status", "must be active or inactive")
	}
}

// GET /api/admin/members?status=&familyId=&q=
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.MemberFilter{Search: strings.TrimSpace(q.Get("q"))}
	if v := q.Get("status"); v != "" {
		st, err := parseStatus(v, "")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		f.Status = st
	}
	if id := parseIntDefault(q.Get("familyId"), 0); id > 0 {
		f.FamilyID = uint(id)
	}
	members, err := s.deps.Members.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Members.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	var m model.Member
	if err := s.applyMember(r, req, &m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Members.Create(r.Context(), &m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.deps.Members.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.applyMember(r, req, m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Members.Update(r.Context(), m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/admin/members/{id} deactivates; rows are never removed.
func (s *Server) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Members.SetStatus(r.Context(), id, model.StatusInactive); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "status": model.StatusInactive})
}

type familyRequest struct {
	FamilyName string `json:"familyName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

func (req familyRequest) apply(f *model.Family) error {
	name := strings.TrimSpace(req.FamilyName)
	if name == "" {
		return model.Invalid("familyName", "is required")
	}
	f.FamilyName = name
	f.Address = strings.TrimSpace(req.Address)
	f.City = strings.TrimSpace(req.City)
	f.State = strings.ToUpper(strings.TrimSpace(req.State))
	f.Zip = strings.TrimSpace(req.Zip)
	f.Phone = strings.TrimSpace(req.Phone)
	f.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return nil
}

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.deps.Families.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if families == nil {
		families = []model.Family{}
	}
	writeJSON(w, http.StatusOK, families)
}

// GET /api/admin/families/{id} includes the family's active members.
func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	f, err := s.deps.Families.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	var f model.Family
	if err := req.apply(&f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Families.Create(r.Context(), &f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFamily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	f, err := s.deps.Families.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := req.apply(f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Families.Update(r.Context(), f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
