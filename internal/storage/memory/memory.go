package memory

// Package memory implements the account store and history log over in-process
// maps. It reproduces the contract of the slow tables this service was built
// against: every call waits a random duration up to a configurable maximum
// before touching data, and concurrent callers get no atomicity across calls.
// The engine supplies all serialization externally.
import (
    "context"
    "math/rand"
    "sync"
    "time"

    "github.com/tinoosan/pointledger/internal/point"
)

// Store holds both tables. The mutex guards the maps only; the latency sleep
// happens outside it so slow calls do not serialize each other.
type Store struct {
    mu       sync.Mutex
    accounts map[int64]point.Account
    records  []point.HistoryRecord
    cursor   int64

    maxLatency time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithMaxLatency caps the randomized per-call delay. Zero disables it.
func WithMaxLatency(d time.Duration) Option {
    return func(s *Store) { s.maxLatency = d }
}

// New constructs an empty store. The default latency cap is 300ms per call.
func New(opts ...Option) *Store {
    s := &Store{
        accounts:   make(map[int64]point.Account),
        maxLatency: 300 * time.Millisecond,
    }
    for _, o := range opts {
        o(s)
    }
    return s
}

// delay sleeps a random duration up to maxLatency, honoring ctx cancellation.
func (s *Store) delay(ctx context.Context) error {
    if s.maxLatency <= 0 {
        return nil
    }
    t := time.NewTimer(time.Duration(rand.Int63n(int64(s.maxLatency))))
    defer t.Stop()
    select {
    case <-t.C:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Balance returns the stored account, or a zero account if the user was never
// written. It never creates a row.
func (s *Store) Balance(ctx context.Context, userID int64) (point.Account, error) {
    if err := s.delay(ctx); err != nil {
        return point.Account{}, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if acc, ok := s.accounts[userID]; ok {
        return acc, nil
    }
    return point.Account{UserID: userID}, nil
}

// Save creates or overwrites the user's balance row.
func (s *Store) Save(ctx context.Context, userID int64, balance int64) (point.Account, error) {
    if err := s.delay(ctx); err != nil {
        return point.Account{}, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    acc := point.Account{UserID: userID, Balance: balance, UpdatedAt: time.Now().UTC()}
    s.accounts[userID] = acc
    return acc, nil
}

// Append records one transaction and assigns the next global sequence id.
func (s *Store) Append(ctx context.Context, userID int64, kind point.Kind, amount int64, at time.Time) (point.HistoryRecord, error) {
    if err := s.delay(ctx); err != nil {
        return point.HistoryRecord{}, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.cursor++
    rec := point.HistoryRecord{
        SequenceID: s.cursor,
        UserID:     userID,
        Kind:       kind,
        Amount:     amount,
        Timestamp:  at,
    }
    s.records = append(s.records, rec)
    return rec, nil
}

// RecordsByUserID returns the user's records in insertion order, which callers
// must treat as unordered.
func (s *Store) RecordsByUserID(ctx context.Context, userID int64) ([]point.HistoryRecord, error) {
    if err := s.delay(ctx); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]point.HistoryRecord, 0)
    for _, r := range s.records {
        if r.UserID == userID {
            out = append(out, r)
        }
    }
    return out, nil
}

// Ready reports storage health. The in-memory store is always ready.
func (s *Store) Ready(ctx context.Context) error { return nil }

// Seed helpers for local dev/tests.
func (s *Store) SeedAccount(a point.Account) {
    s.mu.Lock()
    s.accounts[a.UserID] = a
    s.mu.Unlock()
}

func (s *Store) Reset() {
    s.mu.Lock()
    s.accounts = map[int64]point.Account{}
    s.records = nil
    s.cursor = 0
    s.mu.Unlock()
}
