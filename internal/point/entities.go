package point

import "time"

// Kind classifies a balance-changing transaction.
type Kind string

const (
	// KindCharge increases an account's balance.
	KindCharge Kind = "CHARGE"
	// KindUse decreases an account's balance.
	KindUse Kind = "USE"
)

// Valid reports whether k is one of the known transaction kinds.
func (k Kind) Valid() bool { return k == KindCharge || k == KindUse }

// Account is the point balance of one user. UserID is assigned externally and is
// never generated here. Balance is a whole number of points and never negative.
type Account struct {
	UserID    int64
	Balance   int64
	UpdatedAt time.Time
}

// HistoryRecord is one immutable entry in the transaction history. SequenceID is
// assigned by the history log at append time and increases globally across users.
// Amount is the magnitude of the change, not the resulting balance.
type HistoryRecord struct {
	SequenceID int64
	UserID     int64
	Kind       Kind
	Amount     int64
	Timestamp  time.Time
}
