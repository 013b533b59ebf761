package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for user operations (register / login).
type Handler struct {
	svc    *UserService
	issuer *auth.Issuer
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, issuer *auth.Issuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, issuer: issuer, logger: logger}
}

// RegisterRequest request body for the register endpoint. Role is honoured
// only when an admin makes the call.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	role := entity.RoleUser
	if c, ok := auth.CallerFrom(r.Context()); ok && c.IsAdmin() && req.Role != "" {
		role = req.Role
	}
	u, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		apperr.Write(w, h.logger, "register", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, u)
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the access token and the caller view it encodes.
type LoginResponse struct {
	AccessToken string                  `json:"access_token"`
	TokenType   string                  `json:"token_type"`
	ExpiresAt   time.Time               `json:"expires_at"`
	User        *entity.MinimalAuthView `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorBody{Error: "invalid payload"})
		return
	}
	view, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		switch {
		case errors.Is(err, ErrBadCredentials):
			utilities.WriteJSON(w, http.StatusUnauthorized, utilities.ErrorBody{Error: "invalid credentials"})
		case errors.Is(err, ErrDisabled):
			utilities.WriteJSON(w, http.StatusForbidden, utilities.ErrorBody{Error: "account disabled"})
		default:
			utilities.WriteJSON(w, http.StatusInternalServerError, utilities.ErrorBody{Error: "login failed"})
		}
		return
	}
	token, exp, err := h.issuer.Issue(view)
	if err != nil {
		h.logger.Warnw("token issue failed", "err", err)
		utilities.WriteJSON(w, http.StatusInternalServerError, utilities.ErrorBody{Error: "login failed"})
		return
	}
	utilities.WriteJSON(w, http.StatusOK, LoginResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: view})
}

// Me returns the caller's own account, including suspension details.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.CallerFrom(r.Context())
	u, err := h.svc.Get(r.Context(), c.UserID)
	if err != nil {
		apperr.Write(w, h.logger, "get user", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}
