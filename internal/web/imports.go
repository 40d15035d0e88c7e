package web

import (
	"errors"
	"net/http"

	"churchsite/internal/importer"
	"churchsite/internal/model"
)

const maxUploadBytes = 10 << 20

// POST /api/admin/import/{kind} takes a multipart "file" field holding CSV.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	switch kind {
	case importer.KindMembers, importer.KindFamilies, importer.KindMinistries:
	default:
		writeError(w, http.StatusNotFound, "unknown import kind")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeServiceError(w, r, model.Invalid("file", "expected multipart form upload: %v", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeServiceError(w, r, model.Invalid("file", "is required"))
			return
		}
		writeServiceError(w, r, model.Invalid("file", "%v", err))
		return
	}
	defer file.Close()

	ctx := r.Context()
	var (
		res    any
		runErr error
	)
	switch kind {
	case importer.KindMembers:
		res, runErr = s.deps.Importer.ImportMembers(ctx, file)
	case importer.KindFamilies:
		res, runErr = s.deps.Importer.ImportFamilies(ctx, file)
	case importer.KindMinistries:
		res, runErr = s.deps.Importer.ImportMinistries(ctx, file)
	}
	if runErr != nil {
		writeServiceError(w, r, runErr)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
