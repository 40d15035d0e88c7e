package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"churchsite/internal/calendar"
	"churchsite/internal/config"
	"churchsite/internal/database"
	"churchsite/internal/importer"
	appLog "churchsite/internal/log"
	"churchsite/internal/model"
	"churchsite/internal/notify"
	"churchsite/internal/repository"
)

const maxJSONBody = 1 << 20

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Calendar     *calendar.Service
	Members      *repository.MemberRepository
	Families     *repository.FamilyRepository
	Ministries   *repository.MinistryRepository
	SpecialTypes *repository.SpecialEventTypeRepository
	Importer     *importer.Importer
	Notify       *notify.Service

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// BasicAuth guards /api/admin/. Admin endpoints reject every request
	// when it is nil or incomplete.
	BasicAuth *config.BasicAuthConfig
}

// Server exposes the public read model and the admin API as JSON.
type Server struct {
	deps Deps
	mux  *http.ServeMux
	loc  *time.Location
}

func NewServer(d Deps) *Server {
	s := &Server{
		deps: d,
		mux:  http.NewServeMux(),
		loc:  time.UTC,
	}
	if d.Calendar != nil {
		s.loc = d.Calendar.Location()
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr, "admin_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}

	s.mux.HandleFunc("GET /api/calendar/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/calendar/patterns", s.handlePatterns)
	s.mux.HandleFunc("GET /api/special-events", s.handleSpecialEvents)
	s.mux.HandleFunc("GET /api/ministries", s.handlePublicMinistries)
	s.mux.HandleFunc("GET /api/ministries/{id}", s.handlePublicMinistry)
	s.mux.HandleFunc("POST /api/ministries/{id}/inquiry", s.handleInquiry)
	s.mux.HandleFunc("POST /api/contact", s.handleContact)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/admin/calendar/events/{eventId...}", s.handleGetRecord)
	admin.HandleFunc("POST /api/admin/calendar/events", s.handleAnnotate)
	admin.HandleFunc("POST /api/admin/calendar/refresh", s.handleRefresh)
	admin.HandleFunc("GET /api/admin/calendar/status", s.handleCalendarStatus)

	admin.HandleFunc("GET /api/admin/members", s.handleListMembers)
	admin.HandleFunc("POST /api/admin/members", s.handleCreateMember)
	admin.HandleFunc("GET /api/admin/members/{id}", s.handleGetMember)
	admin.HandleFunc("PUT /api/admin/members/{id}", s.handleUpdateMember)
	admin.HandleFunc("DELETE /api/admin/members/{id}", s.handleDeactivateMember)

	admin.HandleFunc("GET /api/admin/families", s.handleListFamilies)
	admin.HandleFunc("POST /api/admin/families", s.handleCreateFamily)
	admin.HandleFunc("GET /api/admin/families/{id}", s.handleGetFamily)
	admin.HandleFunc("PUT /api/admin/families/{id}", s.handleUpdateFamily)

	admin.HandleFunc("GET /api/admin/ministries", s.handleListMinistries)
	admin.HandleFunc("POST /api/admin/ministries", s.handleCreateMinistry)
	admin.HandleFunc("GET /api/admin/ministries/{id}", s.handleGetMinistry)
	admin.HandleFunc("PUT /api/admin/ministries/{id}", s.handleUpdateMinistry)
	admin.HandleFunc("DELETE /api/admin/ministries/{id}", s.handleDeactivateMinistry)
	admin.HandleFunc("POST /api/admin/ministries/{id}/leaders", s.handleAddLeader)

	admin.HandleFunc("GET /api/admin/special-event-types", s.handleListSpecialTypes)
	admin.HandleFunc("POST /api/admin/special-event-types", s.handleCreateSpecialType)

	admin.HandleFunc("POST /api/admin/import/{kind}", s.handleImport)

	s.mux.Handle("/api/admin/", s.requireAdmin(admin))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	a := s.deps.BasicAuth
	return a != nil && a.Username != "" && a.Password != ""
}

// requireAdmin answers 401 unless the request carries the configured
// credentials.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.basicAuthEnabled() {
			writeError(w, http.StatusUnauthorized, "admin access is not configured")
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, s.deps.BasicAuth.Username) || !secureCompare(p, s.deps.BasicAuth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="churchsite admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeServiceError maps service errors onto status codes. Unexpected
// errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrConflict):
		writeError(w, http.StatusBadRequest, "a record with that name already exists")
	default:
		appLog.Error("api request failed", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Invalid("body", "request body is empty")
		}
		return model.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, model.Invalid(name, "must be a positive integer")
	}
	return uint(n), nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
