package setting

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List returns settings, optionally filtered by ?category=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		apperr.Write(w, h.logger, "list settings", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

type ThresholdBody struct {
	Threshold int `json:"threshold"`
}

func (h *Handler) GetReportThreshold(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ReportThreshold(r.Context())
	if err != nil {
		apperr.Write(w, h.logger, "get report threshold", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, ThresholdBody{Threshold: n})
}

func (h *Handler) SetReportThreshold(w http.ResponseWriter, r *http.Request) {
	var body ThresholdBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Debugw("invalid threshold payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	st, err := h.svc.SetReportThreshold(r.Context(), body.Threshold, c.UserID)
	if err != nil {
		apperr.Write(w, h.logger, "set report threshold", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}
