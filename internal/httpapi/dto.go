package httpapi

import (
	"time"

	"github.com/tinoosan/pointledger/internal/point"
)

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type pointResponse struct {
	ID        int64     `json:"id"`
	Point     int64     `json:"point"`
	UpdatedAt time.Time `json:"updated_at"`
}

type historyResponse struct {
	SequenceID int64     `json:"sequence_id"`
	UserID     int64     `json:"user_id"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

func toPointResponse(a point.Account) pointResponse {
	return pointResponse{ID: a.UserID, Point: a.Balance, UpdatedAt: a.UpdatedAt}
}

func toHistoryResponse(r point.HistoryRecord) historyResponse {
	return historyResponse{
		SequenceID: r.SequenceID,
		UserID:     r.UserID,
		Kind:       string(r.Kind),
		Amount:     r.Amount,
		Timestamp:  r.Timestamp,
	}
}
