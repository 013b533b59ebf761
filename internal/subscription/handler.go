package subscription

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

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	if c, ok := auth.CallerFrom(r.Context()); !ok || !c.IsAdmin() {
		all = false
	}
	plans, err := h.svc.ListPlans(r.Context(), !all)
	if err != nil {
		apperr.Write(w, h.logger, "list plans", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, plans)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var in PlanInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid plan payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	p, err := h.svc.CreatePlan(r.Context(), c.UserID, in)
	if err != nil {
		apperr.Write(w, h.logger, "create plan", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, p)
}

type RequestBody struct {
	PlanID int64 `json:"plan_id"`
}

// Request handles POST /subscriptions for the caller.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req RequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid subscription payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	sub, err := h.svc.Request(r.Context(), c.UserID, req.PlanID)
	if err != nil {
		apperr.Write(w, h.logger, "request subscription", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, sub)
}

// Status handles GET /subscriptions/me.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.CallerFrom(r.Context())
	st, err := h.svc.EffectiveStatus(r.Context(), c.UserID, h.svc.Now())
	if err != nil {
		apperr.Write(w, h.logger, "subscription status", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.CallerFrom(r.Context())
	subs, err := h.svc.History(r.Context(), c.UserID)
	if err != nil {
		apperr.Write(w, h.logger, "subscription history", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, subs)
}

type PaymentNoticeBody struct {
	Reference string `json:"reference"`
}

// PaymentNotice handles POST /subscriptions/{id}/payment by the owner.
func (h *Handler) PaymentNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedOrAdmin(w, r, false)
	if !ok {
		return
	}
	var body PaymentNoticeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Debugw("invalid payment payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	sub, err := h.svc.RegisterPaymentNotice(r.Context(), id, body.Reference)
	if err != nil {
		apperr.Write(w, h.logger, "payment notice", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, sub)
}

type ReviewBody struct {
	Approve      bool   `json:"approve"`
	RejectReason string `json:"reject_reason"`
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return
	}
	var body ReviewBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Debugw("invalid review payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	c, _ := auth.CallerFrom(r.Context())
	sub, err := h.svc.ReviewPayment(r.Context(), id, c.UserID, body.Approve, body.RejectReason)
	if err != nil {
		apperr.Write(w, h.logger, "review payment", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, sub)
}

type CancelBody struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /subscriptions/{id}/cancel by the owner or an admin.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedOrAdmin(w, r, true)
	if !ok {
		return
	}
	var body CancelBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.logger.Debugw("invalid cancel payload", "err", err)
			utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
			return
		}
	}
	c, _ := auth.CallerFrom(r.Context())
	sub, err := h.svc.Cancel(r.Context(), id, c.UserID, body.Reason)
	if err != nil {
		apperr.Write(w, h.logger, "cancel subscription", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.PendingReviews(r.Context(), utilities.QueryInt(r, "limit", 50), utilities.QueryInt(r, "offset", 0))
	if err != nil {
		apperr.Write(w, h.logger, "pending reviews", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, subs)
}

// Sweep lets an admin trigger SweepExpirations on demand.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SweepExpirations(r.Context(), h.svc.Now())
	if err != nil {
		apperr.Write(w, h.logger, "sweep expirations", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]int64{"expired": n})
}

// ownedOrAdmin parses the subscription id and checks the caller owns it, or
// is an admin when allowAdmin is set. It writes the error response itself.
func (h *Handler) ownedOrAdmin(w http.ResponseWriter, r *http.Request, allowAdmin bool) (int64, bool) {
	id, ok := utilities.PathID(r, "id")
	if !ok {
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid id"})
		return 0, false
	}
	c, _ := auth.CallerFrom(r.Context())
	if allowAdmin && c.IsAdmin() {
		return id, true
	}
	sub, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apperr.Write(w, h.logger, "get subscription", err)
		return 0, false
	}
	if sub.UserID != c.UserID {
		utilities.WriteJSON(w, http.StatusForbidden, utilities.ErrorBody{Error: "forbidden"})
		return 0, false
	}
	return id, true
}
