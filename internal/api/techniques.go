package api

import (
	"net/http"

	"mitre-shield/internal/storage"
)

func (s *Server) handleListTechniques(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TechniqueFilter{
		TechniqueID:        q.Get("technique_id"),
		Tactic:             q.Get("tactic"),
		ExtractionPlatform: q.Get("platform"),
	}

	techniques, err := s.techniques.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list techniques", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch techniques")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      len(techniques),
		"techniques": techniques,
	})
}
