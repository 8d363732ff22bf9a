package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tally/internal/importer"
	applog "tally/internal/log"
	"tally/internal/sheets/google"
)

// maxUploadBytes bounds spreadsheet uploads.
const maxUploadBytes = 10 << 20

// handleImportFile takes a multipart "file" field; the format comes from the
// "format" field or the file extension.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, invalidInput("expected a multipart upload under 10 MB"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, invalidInput("missing file field"))
		return
	}
	defer file.Close()

	name := r.FormValue("format")
	if name == "" {
		name = header.Filename
	}
	format, err := importer.ParseFormat(name)
	if err != nil {
		writeError(w, r, invalidInput("%v", err))
		return
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentImport)
	logger.InfoContext(r.Context(), "Import started",
		applog.FieldOwnerID, ledgerOwner(r),
		"format", format,
		"filename", header.Filename,
		"size", header.Size)

	res, err := s.deps.Importer.Import(r.Context(), ledgerOwner(r), UserID(r.Context()), format, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sheetImportRequest struct {
	Spreadsheet string `json:"spreadsheet"`
	Sheet       string `json:"sheet"`
	Range       string `json:"range"`
}

// handleImportSheet reads a Google Sheet by id or URL.
func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	var req sheetImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := google.ParseSpreadsheetRef(req.Spreadsheet)
	if err != nil {
		writeError(w, r, invalidInput("%v", err))
		return
	}
	rng := strings.TrimSpace(req.Range)
	if rng == "" {
		rng = google.ImportRange(req.Sheet)
	}

	res, err := s.deps.Importer.ImportSheet(r.Context(), ledgerOwner(r), UserID(r.Context()), id, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := importer.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, r, invalidInput("%v", err))
		return
	}
	tpl, err := importer.BuildTemplate(format)
	if err != nil {
		writeError(w, r, invalidInput("%v", err))
		return
	}
	w.Header().Set("Content-Type", tpl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tpl.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tpl.Data)
}
