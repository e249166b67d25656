package postgres

// Package postgres provides a pgx-backed implementation of the account store
// and history log. Migrations that create the expected schema live under
// db/migrations. Sequence ids come from the point_history bigserial column,
// so they increase globally across users.

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/pointledger/internal/point"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use;
// like the in-memory tables, it offers no atomicity across calls.
type Store struct {
    pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil {
        return nil, err
    }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil {
        return nil, err
    }
    if err := pool.Ping(ctx); err != nil {
        pool.Close()
        return nil, err
    }
    return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
    if s.pool != nil {
        s.pool.Close()
    }
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Balance returns the stored account, or a zero account when no row exists.
func (s *Store) Balance(ctx context.Context, userID int64) (point.Account, error) {
    var acc point.Account
    err := s.pool.QueryRow(ctx, `
        select user_id, balance, updated_at
        from point_accounts
        where user_id = $1
    `, userID).Scan(&acc.UserID, &acc.Balance, &acc.UpdatedAt)
    if errors.Is(err, pgx.ErrNoRows) {
        return point.Account{UserID: userID}, nil
    }
    if err != nil {
        return point.Account{}, err
    }
    return acc, nil
}

// Save upserts the user's balance row and returns the stored account.
func (s *Store) Save(ctx context.Context, userID int64, balance int64) (point.Account, error) {
    var acc point.Account
    err := s.pool.QueryRow(ctx, `
        insert into point_accounts (user_id, balance, updated_at)
        values ($1, $2, now())
        on conflict (user_id) do update set balance = $2, updated_at = now()
        returning user_id, balance, updated_at
    `, userID, balance).Scan(&acc.UserID, &acc.Balance, &acc.UpdatedAt)
    if err != nil {
        return point.Account{}, err
    }
    return acc, nil
}

// Append inserts one history row and returns it with its assigned sequence id.
func (s *Store) Append(ctx context.Context, userID int64, kind point.Kind, amount int64, at time.Time) (point.HistoryRecord, error) {
    rec := point.HistoryRecord{UserID: userID, Kind: kind, Amount: amount, Timestamp: at}
    err := s.pool.QueryRow(ctx, `
        insert into point_history (user_id, kind, amount, occurred_at)
        values ($1, $2, $3, $4)
        returning sequence_id
    `, userID, string(kind), amount, at).Scan(&rec.SequenceID)
    if err != nil {
        return point.HistoryRecord{}, err
    }
    return rec, nil
}

// RecordsByUserID returns all history rows for a user, unordered.
func (s *Store) RecordsByUserID(ctx context.Context, userID int64) ([]point.HistoryRecord, error) {
    rows, err := s.pool.Query(ctx, `
        select sequence_id, user_id, kind, amount, occurred_at
        from point_history
        where user_id = $1
    `, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]point.HistoryRecord, 0)
    for rows.Next() {
        var r point.HistoryRecord
        var kind string
        if err := rows.Scan(&r.SequenceID, &r.UserID, &kind, &r.Amount, &r.Timestamp); err != nil {
            return nil, err
        }
        r.Kind = point.Kind(kind)
        out = append(out, r)
    }
    return out, rows.Err()
}
