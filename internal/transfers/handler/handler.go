// Package handler exposes the transfers HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Xarofive/bank-app-sub001/internal/transfers/models"
	"github.com/Xarofive/bank-app-sub001/internal/transfers/service"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/publisher"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts transfer endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/transfers", h.HandleComplete)
	r.Get("/v1/transfers", h.HandleHistory)
}

type completeRequest struct {
	FromAccount string `json:"fromAccount"`
	ToAccount   string `json:"toAccount"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type transferResponse struct {
	ID          string    `json:"id"`
	FromAccount string    `json:"fromAccount"`
	ToAccount   string    `json:"toAccount"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	CompletedAt time.Time `json:"completedAt"`
}

func toResponse(t models.Transfer) transferResponse {
	return transferResponse{
		ID:          t.ID.String(),
		FromAccount: t.FromAccount,
		ToAccount:   t.ToAccount,
		Amount:      t.Amount,
		Currency:    t.Currency,
		CompletedAt: t.CompletedAt,
	}
}

// HandleComplete handles POST /v1/transfers.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	transfer, err := h.service.Complete(ctx, service.CompleteRequest{
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	switch {
	case errors.Is(err, publisher.ErrPublishFailed):
		// The transfer is committed; only the announcement failed. Tell the
		// caller what was recorded and let operations reconcile the event.
		h.logger.ErrorContext(ctx, "transfer committed without announcement", "transfer_id", transfer.ID, "error", err)
		writeJSON(w, http.StatusAccepted, toResponse(transfer))
		return
	case err != nil:
		h.logger.WarnContext(ctx, "transfer rejected", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(transfer))
}

// HandleHistory handles GET /v1/transfers?account=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account query parameter is required", http.StatusBadRequest)
		return
	}

	transfers, err := h.service.History(r.Context(), account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "transfer history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}

	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
