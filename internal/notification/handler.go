package notification

import (
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

// List returns the caller's inbox.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.CallerFrom(r.Context())
	items, err := h.svc.List(r.Context(), c.UserID, utilities.QueryInt(r, "limit", 50))
	if err != nil {
		apperr.Write(w, h.logger, "list notifications", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	if err := h.svc.MarkRead(r.Context(), c.UserID, id); err != nil {
		apperr.Write(w, h.logger, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
