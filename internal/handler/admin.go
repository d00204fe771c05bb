package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/trustgate/internal/model"
)

// handleAdminSubmissions dumps the locally mirrored rows as JSON. The
// optional kind query parameter filters by trial or post_study.
func (h *Handler) handleAdminSubmissions(w http.ResponseWriter, r *http.Request) {
	kind := model.SubmissionKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != model.KindTrial && kind != model.KindPostStudy {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}

	rows, err := h.store.ExportSubmissions(kind)
	if err != nil {
		slog.Error("failed to export submissions", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	export := model.SubmissionExport{
		StudyID:     r.URL.Query().Get("study_id"),
		ExportedAt:  time.Now().UTC(),
		Kind:        kind,
		Count:       len(rows),
		Submissions: rows,
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		slog.Error("failed to write export", "error", err)
	}
}
