package moderation

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Handler exposes the moderation engine. Admin-only routes are guarded by
// the router; the engine checks the admin role again inside its transaction.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type ReportRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

// FileReport handles POST /posts/{id}/reports.
func (h *Handler) FileReport(w http.ResponseWriter, r *http.Request) {
	postID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid report payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	res, err := h.svc.FileReport(r.Context(), postID, c.UserID, req.Reason, req.Comment)
	if err != nil {
		apperr.Write(w, h.logger, "file report", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) ConfirmFake(w http.ResponseWriter, r *http.Request) {
	postID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	res, err := h.svc.ConfirmFake(r.Context(), postID, c.UserID)
	if err != nil {
		apperr.Write(w, h.logger, "confirm fake", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) DiscardReports(w http.ResponseWriter, r *http.Request) {
	postID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	res, err := h.svc.DiscardReports(r.Context(), postID, c.UserID)
	if err != nil {
		apperr.Write(w, h.logger, "discard reports", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ReportsForPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	reports, err := h.svc.ReportsForPost(r.Context(), postID)
	if err != nil {
		apperr.Write(w, h.logger, "list reports", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) FlaggedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.FlaggedPosts(r.Context(), utilities.QueryInt(r, "limit", 50), utilities.QueryInt(r, "offset", 0))
	if err != nil {
		apperr.Write(w, h.logger, "list flagged posts", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, posts)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		apperr.Write(w, h.logger, "moderation stats", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}
