package memory

import (
	"github.com/tinoosan/pointledger/internal/service/ledger"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ ledger.AccountStore = (*Store)(nil)
	_ ledger.HistoryLog   = (*Store)(nil)
)
