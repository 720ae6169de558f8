package ledger

import (
	"errors"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/storage"
)

// Errors returned by the Service. Callers match them with errors.Is.
var (
	ErrSplitSumMismatch      = calculator.ErrSplitSumMismatch
	ErrScopeCurrencyMismatch = calculator.ErrScopeCurrencyMismatch
	ErrUnbalancedInput       = calculator.ErrUnbalancedInput
	ErrNotFound              = storage.ErrNotFound

	ErrInvalidExpense    = errors.New("invalid expense")
	ErrInvalidSettlement = errors.New("invalid settlement")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyReversed   = errors.New("already reversed")
	ErrInvalidFilter     = errors.New("invalid activity filter")

	// ErrConcurrentModification means the scope kept moving while a write was
	// retried. The caller may retry the whole request.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// IsRetryable reports whether the request can be retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
