package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
    // ErrInvalidAmount is returned when a charge/use amount is zero or negative.
    ErrInvalidAmount = errors.New("invalid_amount")
    // ErrInsufficientBalance is returned when a use would drive the balance below zero.
    ErrInsufficientBalance = errors.New("insufficient_balance")
    // ErrStoreUnavailable wraps failures of the account store or history log.
    ErrStoreUnavailable = errors.New("store_unavailable")
    ErrNotFound         = errors.New("not_found")
)
