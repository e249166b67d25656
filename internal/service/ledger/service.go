// Package ledger implements the balance-mutation engine. It is the only
// component that writes to the account store or appends to the history log,
// and it serializes mutations per user through the lock registry. The backing
// stores are assumed slow and unordered; they provide no atomicity of their
// own.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/pointledger/internal/errs"
	"github.com/tinoosan/pointledger/internal/lockreg"
	"github.com/tinoosan/pointledger/internal/point"
)

// AccountStore is the balance table. Balance returns a zero account for a user
// id that has never been written; Save creates or overwrites the row. Calls may
// take arbitrarily long and offer no ordering between concurrent callers.
type AccountStore interface {
	Balance(ctx context.Context, userID int64) (point.Account, error)
	Save(ctx context.Context, userID int64, balance int64) (point.Account, error)
}

// HistoryLog is the append-only transaction table. Append assigns a globally
// increasing sequence id; RecordsByUserID returns records in no particular
// order.
type HistoryLog interface {
	Append(ctx context.Context, userID int64, kind point.Kind, amount int64, at time.Time) (point.HistoryRecord, error)
	RecordsByUserID(ctx context.Context, userID int64) ([]point.HistoryRecord, error)
}

// Publisher is notified after a mutation has fully committed. Publish failures
// do not fail the operation.
type Publisher interface {
	TransactionCompleted(ctx context.Context, rec point.HistoryRecord, balance int64) error
}

// Service exposes the four caller-facing operations of the engine.
type Service interface {
	GetBalance(ctx context.Context, userID int64) (point.Account, error)
	GetHistory(ctx context.Context, userID int64) ([]point.HistoryRecord, error)
	Charge(ctx context.Context, userID, amount int64) (point.Account, error)
	Use(ctx context.Context, userID, amount int64) (point.Account, error)
}

type service struct {
	accounts AccountStore
	history  HistoryLog
	locks    *lockreg.Registry
	pub      Publisher
	log      *slog.Logger

	strictReads   bool
	appendRetries int
	now           func() time.Time
}

// Option configures optional engine behavior.
type Option func(*service)

// WithStrictReads makes GetBalance and GetHistory take the per-user gate,
// trading latency for freshness. The default is weak reads: a read may return
// a value that a concurrent mutation immediately makes stale.
func WithStrictReads() Option { return func(s *service) { s.strictReads = true } }

// WithAppendRetries sets how many times a failed history append is retried
// while the gate is still held. Default 2.
func WithAppendRetries(n int) Option { return func(s *service) { s.appendRetries = n } }

// WithPublisher attaches a post-commit event publisher.
func WithPublisher(p Publisher) Option { return func(s *service) { s.pub = p } }

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

// New constructs the engine over the given stores.
func New(accounts AccountStore, history HistoryLog, opts ...Option) Service {
	s := &service{
		accounts:      accounts,
		history:       history,
		locks:         lockreg.New(),
		log:           slog.Default(),
		appendRetries: 2,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetBalance returns the account as currently stored. A user that was never
// charged reads as balance 0; no row is created.
func (s *service) GetBalance(ctx context.Context, userID int64) (point.Account, error) {
	if s.strictReads {
		release, err := s.locks.Acquire(ctx, userID)
		if err != nil {
			return point.Account{}, err
		}
		defer release()
	}
	acc, err := s.accounts.Balance(ctx, userID)
	if err != nil {
		readsTotal.WithLabelValues("balance", outcomeStoreUnavailable).Inc()
		return point.Account{}, fmt.Errorf("%w: read balance: %v", errs.ErrStoreUnavailable, err)
	}
	readsTotal.WithLabelValues("balance", outcomeOK).Inc()
	return acc, nil
}

// GetHistory returns the user's records sorted ascending by timestamp, ties
// broken by sequence id. The log itself returns them unordered.
func (s *service) GetHistory(ctx context.Context, userID int64) ([]point.HistoryRecord, error) {
	if s.strictReads {
		release, err := s.locks.Acquire(ctx, userID)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	recs, err := s.history.RecordsByUserID(ctx, userID)
	if err != nil {
		readsTotal.WithLabelValues("history", outcomeStoreUnavailable).Inc()
		return nil, fmt.Errorf("%w: read history: %v", errs.ErrStoreUnavailable, err)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].SequenceID < recs[j].SequenceID
		}
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	readsTotal.WithLabelValues("history", outcomeOK).Inc()
	return recs, nil
}

// Charge adds amount points to the user's balance.
func (s *service) Charge(ctx context.Context, userID, amount int64) (point.Account, error) {
	return s.mutate(ctx, userID, point.KindCharge, amount)
}

// Use spends amount points from the user's balance. Spending the exact balance
// is legal and yields 0.
func (s *service) Use(ctx context.Context, userID, amount int64) (point.Account, error) {
	return s.mutate(ctx, userID, point.KindUse, amount)
}

// mutate runs one read-validate-write-append cycle inside the user's gate.
func (s *service) mutate(ctx context.Context, userID int64, kind point.Kind, amount int64) (point.Account, error) {
	if amount <= 0 {
		operationsTotal.WithLabelValues(string(kind), outcomeInvalidAmount).Inc()
		return point.Account{}, errs.ErrInvalidAmount
	}

	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return point.Account{}, err
	}
	defer release()

	opID := uuid.New()

	cur, err := s.accounts.Balance(ctx, userID)
	if err != nil {
		operationsTotal.WithLabelValues(string(kind), outcomeStoreUnavailable).Inc()
		return point.Account{}, fmt.Errorf("%w: read balance: %v", errs.ErrStoreUnavailable, err)
	}

	newBalance := cur.Balance + amount
	if kind == point.KindUse {
		if cur.Balance < amount {
			operationsTotal.WithLabelValues(string(kind), outcomeInsufficient).Inc()
			return point.Account{}, errs.ErrInsufficientBalance
		}
		newBalance = cur.Balance - amount
	}

	updated, err := s.accounts.Save(ctx, userID, newBalance)
	if err != nil {
		operationsTotal.WithLabelValues(string(kind), outcomeStoreUnavailable).Inc()
		return point.Account{}, fmt.Errorf("%w: write balance: %v", errs.ErrStoreUnavailable, err)
	}

	rec, err := s.appendWithRetry(ctx, userID, kind, amount, s.now().UTC())
	if err != nil {
		// The balance write already landed; with two independent stores and no
		// shared transaction the histories can diverge here. Surface the
		// failure and leave reconciliation to the operator.
		s.log.Error("history append failed after balance write",
			"op_id", opID, "user_id", userID, "kind", kind, "amount", amount, "err", err)
		operationsTotal.WithLabelValues(string(kind), outcomeStoreUnavailable).Inc()
		return point.Account{}, fmt.Errorf("%w: append history: %v", errs.ErrStoreUnavailable, err)
	}

	s.log.Debug("mutation committed",
		"op_id", opID, "user_id", userID, "kind", kind, "amount", amount,
		"balance", updated.Balance, "sequence_id", rec.SequenceID)
	operationsTotal.WithLabelValues(string(kind), outcomeOK).Inc()

	if s.pub != nil {
		if perr := s.pub.TransactionCompleted(ctx, rec, updated.Balance); perr != nil {
			s.log.Warn("event publish failed", "op_id", opID, "user_id", userID, "err", perr)
		}
	}
	return updated, nil
}

// appendWithRetry retries a failed append a bounded number of times. The gate
// is still held, so a retry cannot interleave with another mutation for the
// same user. Retrying the append alone is safe; retrying the whole operation
// would double-apply the balance change.
func (s *service) appendWithRetry(ctx context.Context, userID int64, kind point.Kind, amount int64, at time.Time) (point.HistoryRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= s.appendRetries; attempt++ {
		rec, err := s.history.Append(ctx, userID, kind, amount, at)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return point.HistoryRecord{}, lastErr
}
