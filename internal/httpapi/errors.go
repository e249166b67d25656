package httpapi

import (
	"errors"
	"net/http"

	"github.com/tinoosan/pointledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }

// serviceError maps engine errors onto HTTP statuses. Nothing is swallowed;
// unknown failures surface as 500.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidAmount):
		writeErr(w, http.StatusBadRequest, "amount must be a positive integer", "invalid_amount")
	case errors.Is(err, errs.ErrInsufficientBalance):
		writeErr(w, http.StatusUnprocessableEntity, "balance is insufficient", "insufficient_balance")
	case errors.Is(err, errs.ErrStoreUnavailable):
		s.log.Error("store unavailable", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "store unavailable", "store_unavailable")
	default:
		s.log.Error("operation failed", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
