package revenue

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type InteractionRequest struct {
	Kind string `json:"kind"`
}

// RecordInteraction handles POST /posts/{id}/interactions.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	postID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	var req InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid interaction payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	res, err := h.svc.RecordInteraction(r.Context(), postID, req.Kind)
	if err != nil {
		apperr.Write(w, h.logger, "record interaction", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

// DashboardResponse shows exact ledger sums next to their two-decimal
// display values.
type DashboardResponse struct {
	Admin          string `json:"admin"`
	Creator        string `json:"creator"`
	Total          string `json:"total"`
	AdminDisplay   string `json:"admin_display"`
	CreatorDisplay string `json:"creator_display"`
	TotalDisplay   string `json:"total_display"`
	Rows           int64  `json:"rows"`
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Dashboard(r.Context())
	if err != nil {
		apperr.Write(w, h.logger, "revenue dashboard", err)
		return
	}
	total := t.Total()
	utilities.WriteJSON(w, http.StatusOK, DashboardResponse{
		Admin:          t.Admin.String(),
		Creator:        t.Creator.String(),
		Total:          total.String(),
		AdminDisplay:   t.Admin.StringFixed(2),
		CreatorDisplay: t.Creator.StringFixed(2),
		TotalDisplay:   total.StringFixed(2),
		Rows:           t.Rows,
	})
}

// UserTotals handles GET /users/{id}/earnings for the user themself or an admin.
func (h *Handler) UserTotals(w http.ResponseWriter, r *http.Request) {
	userID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	if c.UserID != userID && !c.IsAdmin() {
		utilities.WriteJSON(w, http.StatusForbidden, utilities.ErrorBody{Error: "forbidden"})
		return
	}
	t, err := h.svc.UserTotals(r.Context(), userID)
	if err != nil {
		apperr.Write(w, h.logger, "user earnings", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":                  t.UserID,
		"creator_earnings":         t.CreatorEarnings.String(),
		"creator_earnings_display": t.CreatorEarnings.StringFixed(2),
		"posts":                    t.Posts,
		"views":                    t.Views,
		"clicks":                   t.Clicks,
	})
}

type SimulateRequest struct {
	PostID int64  `json:"post_id"`
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
}

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid simulate payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	res, err := h.svc.Simulate(r.Context(), req.PostID, req.Kind, req.Count)
	if err != nil {
		apperr.Write(w, h.logger, "simulate interactions", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}
