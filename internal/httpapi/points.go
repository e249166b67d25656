package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
)

// userIDParam parses the {id} path segment. User ids are positive integers
// assigned outside this service.
func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GET /point/{id}
func (s *Server) getPoint(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	acc, err := s.svc.GetBalance(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toPointResponse(acc))
}

// GET /point/{id}/histories
func (s *Server) getHistories(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	recs, err := s.svc.GetHistory(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toHistoryResponse(rec))
	}
	toJSON(w, http.StatusOK, out)
}

// PATCH /point/{id}/charge
func (s *Server) chargePoint(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	req, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	acc, err := s.svc.Charge(r.Context(), id, req.Amount)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toPointResponse(acc))
}

// PATCH /point/{id}/use
func (s *Server) usePoint(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	req, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	acc, err := s.svc.Use(r.Context(), id, req.Amount)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toPointResponse(acc))
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (amountRequest, bool) {
	var req amountRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return amountRequest{}, false
	}
	return req, true
}
