package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

type filesResponse struct {
	Files []model.FileRecord `json:"files"`
}

// handleFilesBySection never fails: an unreadable store is logged and
// answered with an empty list.
func (s *Server) handleFilesBySection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	if r.URL.RawPath != "" {
		// chi matched against the escaped path
		if unescaped, err := url.PathUnescape(section); err == nil {
			section = unescaped
		}
	}
	files, err := s.store.BySection(r.Context(), section)
	if err != nil {
		s.logger.Warn("query store", "section", section, "err", err, "rid", RequestIDFromContext(r.Context()))
		files = nil
	}
	if files == nil {
		files = []model.FileRecord{}
	}
	respondJSON(w, http.StatusOK, filesResponse{Files: files})
}
