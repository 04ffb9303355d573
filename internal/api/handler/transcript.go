package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/construex/whatsapp-designer/internal/api/response"
	"github.com/construex/whatsapp-designer/internal/domain"
)

// TranscriptHandler exposes persisted conversation transcripts for
// operational inspection
type TranscriptHandler struct {
	transcripts domain.TranscriptRepository
}

// NewTranscriptHandler creates a new transcript handler
func NewTranscriptHandler(transcripts domain.TranscriptRepository) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// ListByUser returns the most recent transcript entries for a user
func (h *TranscriptHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "missing user id")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.transcripts.ListByUser(r.Context(), userID, limit)
	if err != nil {
		response.InternalError(w, "failed to load transcripts")
		return
	}

	response.OK(w, map[string]any{
		"user_id": userID,
		"entries": entries,
	})
}
