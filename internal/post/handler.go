package post

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

type CreateRequest struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid post payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	p, err := h.svc.Create(r.Context(), c.UserID, req.ContentType, req.Title, req.Body)
	if err != nil {
		apperr.Write(w, h.logger, "create post", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apperr.Write(w, h.logger, "get post", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}
