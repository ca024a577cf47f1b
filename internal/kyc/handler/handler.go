// Package handler exposes the KYC HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Xarofive/bank-app-sub001/internal/kyc/service"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts KYC endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/kyc/{userID}/status", h.HandleChangeStatus)
	r.Get("/v1/kyc/{userID}", h.HandleStatus)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type reviewResponse struct {
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HandleChangeStatus handles PUT /v1/kyc/{userID}/status.
func (h *Handler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	review, err := h.service.ChangeStatus(ctx, userID, events.KycStatus(req.Status))
	if err != nil {
		h.logger.WarnContext(ctx, "kyc status change rejected", "user_id", userID, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reviewResponse{
		UserID:    review.UserID,
		Status:    string(review.Status),
		UpdatedAt: review.UpdatedAt,
	})
}

// HandleStatus handles GET /v1/kyc/{userID}.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	review, err := h.service.Status(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		http.Error(w, "no kyc review for user", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "kyc status query failed", "user_id", userID, "error", err)
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reviewResponse{
		UserID:    review.UserID,
		Status:    string(review.Status),
		UpdatedAt: review.UpdatedAt,
	})
}
