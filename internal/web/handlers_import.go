package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/boardimport/internal/config"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/JonMunkholm/boardimport/internal/logging"
	"github.com/JonMunkholm/boardimport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// importForm is the validated request for preview and start.
type importForm struct {
	IdeaID          string `validate:"required"`
	ActorID         string `validate:"required_if=Start true"`
	Start           bool
	Mode            string `validate:"omitempty,oneof=bulk sequential"`
	Format          string `validate:"omitempty,oneof=csv json trello custom text"`
	DefaultColumnID string
	CSVMapping      importer.CSVFieldMapping
	ColumnMapping   importer.ColumnMapping

	data     []byte
	filename string
}

// boardIDs holds the ids that postgres stores as uuid columns.
type boardIDs struct {
	IdeaID  string `validate:"uuid"`
	ActorID string `validate:"omitempty,uuid"`
}

// readImportForm reads the upload and its parameters. The data is either a
// multipart "file" field or the raw request body; parameters come from form
// fields or the query string.
func (s *Server) readImportForm(w http.ResponseWriter, r *http.Request, start bool) (*importForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	form := &importForm{
		IdeaID: chi.URLParam(r, "ideaID"),
		Start:  start,
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
			return nil, readError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errNoInput
		}
		defer file.Close()
		if form.data, err = io.ReadAll(file); err != nil {
			return nil, readError(err)
		}
		form.filename = header.Filename
	} else {
		var err error
		if form.data, err = io.ReadAll(r.Body); err != nil {
			return nil, readError(err)
		}
	}
	if len(strings.TrimSpace(string(form.data))) == 0 {
		return nil, errNoInput
	}

	form.ActorID = r.FormValue("actor_id")
	if form.ActorID == "" {
		form.ActorID = r.Header.Get("X-Actor-ID")
	}
	form.Mode = r.FormValue("mode")
	form.Format = r.FormValue("format")
	form.DefaultColumnID = r.FormValue("default_column_id")

	if raw := r.FormValue("csv_mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.CSVMapping); err != nil {
			return nil, fmt.Errorf("invalid csv_mapping: %w", err)
		}
		for idx, field := range form.CSVMapping {
			if !field.Valid() {
				return nil, fmt.Errorf("invalid csv_mapping: column %d has unknown field %q", idx, field)
			}
		}
	}
	if raw := r.FormValue("column_mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.ColumnMapping); err != nil {
			return nil, fmt.Errorf("invalid column_mapping: %w", err)
		}
	}

	if err := s.validate.Struct(form); err != nil {
		return nil, err
	}
	if s.cfg.Database.Driver == config.DriverPostgres {
		if err := s.validate.Struct(boardIDs{IdeaID: form.IdeaID, ActorID: form.ActorID}); err != nil {
			return nil, err
		}
	}
	return form, nil
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("read upload: %w", err)
}

func (f *importForm) format() importer.Format {
	if f.Format != "" {
		return importer.Format(f.Format)
	}
	if f.filename != "" {
		return importer.FormatFromFilename(f.filename)
	}
	trimmed := strings.TrimSpace(string(f.data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return importer.FormatJSON
	}
	return importer.FormatText
}

// respondFormError separates client mistakes from upload failures.
func respondFormError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errFileTooLarge) || errors.Is(err, errNoInput) {
		respondError(w, r, err)
		return
	}
	respondBadRequest(w, r, err)
}

// handlePreview parses an upload and shows what importing it would do.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, err := s.readImportForm(w, r, false)
	if err != nil {
		respondFormError(w, r, err)
		return
	}

	preview, err := s.service.Preview(r.Context(), form.IdeaID, form.format(), form.data, form.CSVMapping)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.ImportPreview(preview).Render(r.Context(), w)
		return
	}
	writeJSON(w, preview)
}

// StartImportResponse is returned when a run has been accepted.
type StartImportResponse struct {
	RunID       string `json:"run_id"`
	ProgressURL string `json:"progress_url"`
	ResultURL   string `json:"result_url"`
}

// handleStartImport starts a background import run.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	form, err := s.readImportForm(w, r, true)
	if err != nil {
		respondFormError(w, r, err)
		return
	}

	runID, err := s.service.StartImport(r.Context(), importer.StartRequest{
		IdeaID:          form.IdeaID,
		ActorID:         form.ActorID,
		Mode:            importer.Mode(form.Mode),
		Format:          form.format(),
		Data:            form.data,
		CSVMapping:      form.CSVMapping,
		ColumnMapping:   form.ColumnMapping,
		DefaultColumnID: form.DefaultColumnID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.ForRun(r.Context(), runID, form.IdeaID).Info("import accepted",
		"mode", form.Mode,
		"format", form.format(),
		"bytes", len(form.data),
	)

	writeJSONStatus(w, http.StatusAccepted, StartImportResponse{
		RunID:       runID,
		ProgressURL: "/api/imports/" + runID + "/progress",
		ResultURL:   "/api/imports/" + runID + "/result",
	})
}

// handleImportProgress streams run progress via Server-Sent Events until
// the run finishes or the client goes away.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	var last importer.RunProgress
	seq := 0

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "id: %d\nevent: complete\ndata: %s\n\n", seq+1, data)
				_ = rc.Flush()
				return
			}
			last = progress
			seq++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", seq, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportSnapshot returns the current progress without waiting.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetImportProgress(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.ImportProgress(progress).Render(r.Context(), w)
		return
	}
	writeJSON(w, progress)
}

// handleImportResult waits for the run to finish and returns its result.
// The optional wait parameter (a Go duration) bounds the wait; when it
// passes first, the current progress is returned with 202 Accepted.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	ctx := r.Context()
	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			respondBadRequest(w, r, fmt.Errorf("invalid wait %q", raw))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	result, err := s.service.GetImportResult(ctx, runID)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		progress, perr := s.service.GetImportProgress(runID)
		if perr != nil {
			respondError(w, r, perr)
			return
		}
		writeJSONStatus(w, http.StatusAccepted, progress)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.ImportResult(result).Render(r.Context(), w)
		return
	}
	writeJSON(w, result)
}

// handleCancelImport cancels a running sequential import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelImport(chi.URLParam(r, "runID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleImportStatus reports import slot usage.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}
