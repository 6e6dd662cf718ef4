package api

import (
	"errors"
	"net/http"
	"path"

	"mitre-shield/internal/filestore"
	"mitre-shield/internal/importer"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if !importer.SupportedFile(header.Filename) {
		respondError(w, http.StatusBadRequest, "Unsupported file type: expected .csv or .xlsx")
		return
	}

	info, err := s.files.Save(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("failed to store upload", "filename", header.Filename, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	s.logger.Info("file uploaded", "file_id", info.ID, "filename", info.Name, "size", info.Size)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"file_url": "/uploads/" + info.ID,
		"filename": info.Name,
		"size":     info.Size,
	})
}

type extractDataRequest struct {
	FileURL string `json:"file_url"`
	// JSONSchema describes the fields the caller wants back. Extraction
	// always returns the full normalized row set, so the schema is
	// accepted for compatibility but not consulted.
	JSONSchema map[string]any `json:"json_schema"`
}

func (s *Server) handleExtractData(w http.ResponseWriter, r *http.Request) {
	var req extractDataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileURL == "" {
		respondError(w, http.StatusBadRequest, "file_url is required")
		return
	}

	fileID := path.Base(req.FileURL)
	f, err := s.files.Open(r.Context(), fileID)
	if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrBadFileID) {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"status":  "error",
			"details": "File not found",
		})
		return
	}
	if err != nil {
		s.logger.Error("failed to open stored file", "file_id", fileID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"details": "Failed to read stored file",
		})
		return
	}
	defer f.Close()

	rows, err := s.extractor.Extract(f, fileID)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":  "error",
			"details": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   rows,
	})
}

func (s *Server) handleRuleTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="detection_rules_template.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := importer.WriteTemplate(w); err != nil {
		s.logger.Error("failed to write rule template", "error", err)
	}
}
