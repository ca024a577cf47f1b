// Package handler exposes the audit trail read API used by operational
// tooling. The trail has no write or delete endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	audit "github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
)

// Handler wires audit read endpoints to the recorder.
type Handler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

func New(recorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/audit/events", h.HandleList)
}

type entryResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleList handles GET /v1/audit/events, optionally filtered by user_id.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		entries []audit.Entry
		err     error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		entries, err = h.recorder.FindByUser(ctx, userID)
	} else {
		entries, err = h.recorder.FindAll(ctx)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryResponse{
			ID:        entry.ID.String(),
			EventID:   entry.EventID,
			EventType: entry.EventType,
			Message:   entry.Message,
			UserID:    entry.UserID,
			Timestamp: entry.Timestamp,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.ErrorContext(ctx, "audit response encoding failed", "error", err)
	}
}
