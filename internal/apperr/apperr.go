// Package apperr holds the error taxonomy shared by the moderation, revenue
// and subscription engines. Callers wrap these with fmt.Errorf("%w: ...")
// and match them with errors.Is.
package apperr

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrDuplicate       = errors.New("duplicate")
	ErrSelfAction      = errors.New("action on own content")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
)

// HTTPStatus maps an engine error to the status the API layer should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSelfAction), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code is a short machine-readable name for err, used in JSON error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrSelfAction):
		return "self_action"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}

// Write answers an HTTP request with err. Internal failures are logged at
// warn level and their text is not sent to the client.
func Write(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	status := HTTPStatus(err)
	body := utilities.ErrorBody{Error: Code(err)}
	if status >= http.StatusInternalServerError {
		logger.Warnw(op+" failed", "err", err)
	} else {
		logger.Debugw(op+" rejected", "err", err)
		body.Message = err.Error()
	}
	utilities.WriteJSON(w, status, body)
}
