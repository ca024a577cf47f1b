// Package handler exposes the settings HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Xarofive/bank-app-sub001/internal/settings/service"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts settings endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/settings/{userID}", h.HandleUpdate)
	r.Get("/v1/settings/{userID}", h.HandleGet)
}

type updateRequest struct {
	NotificationEnabled bool   `json:"notificationEnabled"`
	Language            string `json:"language"`
	DarkModeEnabled     bool   `json:"darkModeEnabled"`
}

type settingsResponse struct {
	UserID              string    `json:"userId"`
	NotificationEnabled bool      `json:"notificationEnabled"`
	Language            string    `json:"language"`
	DarkModeEnabled     bool      `json:"darkModeEnabled"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HandleUpdate handles PUT /v1/settings/{userID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	settings, err := h.service.Update(ctx, service.UpdateRequest{
		UserID:              userID,
		NotificationEnabled: req.NotificationEnabled,
		Language:            req.Language,
		DarkModeEnabled:     req.DarkModeEnabled,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "settings update rejected", "user_id", userID, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settingsResponse{
		UserID:              settings.UserID,
		NotificationEnabled: settings.NotificationEnabled,
		Language:            settings.Language,
		DarkModeEnabled:     settings.DarkModeEnabled,
		UpdatedAt:           settings.UpdatedAt,
	})
}

// HandleGet handles GET /v1/settings/{userID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	settings, err := h.service.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		http.Error(w, "no settings for user", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "settings query failed", "user_id", userID, "error", err)
		http.Error(w, "settings query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settingsResponse{
		UserID:              settings.UserID,
		NotificationEnabled: settings.NotificationEnabled,
		Language:            settings.Language,
		DarkModeEnabled:     settings.DarkModeEnabled,
		UpdatedAt:           settings.UpdatedAt,
	})
}
