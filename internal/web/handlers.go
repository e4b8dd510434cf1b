package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bodegahq/importer/internal/importer"
	"github.com/bodegahq/importer/internal/logging"
	"github.com/bodegahq/importer/internal/tabular"
)

// handleListModes returns the available import modes and their template
// columns.
func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"modes": s.service.Modes()})
}

// handleDownloadTemplate serves an empty template for a mode. The format
// query parameter selects xlsx (default) or csv.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	modeKey := chi.URLParam(r, "modeKey")
	def, ok := importer.Get(modeKey)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown import mode: %s", modeKey))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	tmpl, err := tabular.BuildTemplate("plantilla_"+def.Info.Key, def.Info.Columns, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build template")
		return
	}

	w.Header().Set("Content-Type", tmpl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, tmpl.FileName))
	w.Write(tmpl.Data)
}

// handleStartImport accepts a multipart upload and starts an asynchronous
// import run. Extra form fields become run parameters (e.g. order_id).
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	modeKey := chi.URLParam(r, "modeKey")
	if _, ok := importer.Get(modeKey); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown import mode: %s", modeKey))
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	params := make(map[string]string)
	for key, vals := range r.MultipartForm.Value {
		if key == "file" || len(vals) == 0 {
			continue
		}
		params[key] = strings.TrimSpace(vals[0])
	}

	runID, err := s.service.StartImport(r.Context(), modeKey, header.Filename, data, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("import run started",
		"run_id", runID,
		"mode", modeKey,
		"file", header.Filename,
		"bytes", len(data),
	)

	writeJSON(w, map[string]string{"run_id": runID})
}

// handleImportProgress streams run progress via Server-Sent Events.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: the run finished one way or another
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent(), data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the final result of a run, blocking until
// the run completes.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.service.GetResult(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, result)
}

// handleCancelImport requests cancellation of an in-progress run.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.service.CancelRun(runID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleUpdateRow patches a single row in one of the import target
// tables. Tables outside the registered mode set are rejected.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id := chi.URLParam(r, "id")

	log := logging.WithFields(r.Context(), "table", table, "id", id)

	if !s.knownTable(table) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table: %s", table))
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	delete(patch, "id")
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "empty patch")
		return
	}

	if err := s.sink.Update(r.Context(), table, id, patch); err != nil {
		switch {
		case errors.Is(err, importer.ErrDuplicateKey):
			writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "not found"):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			log.Error("row update failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	log.Info("row updated")
	writeJSON(w, map[string]string{"status": "updated"})
}

// knownTable reports whether a table is the write target of a registered
// import mode.
func (s *Server) knownTable(table string) bool {
	for _, def := range importer.All() {
		if def.Info.Table == table {
			return true
		}
	}
	return false
}
