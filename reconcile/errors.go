package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the property index cannot be
	// loaded before any row is processed. This is the only error class
	// that aborts a whole batch.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPersistence is wrapped by PersistenceError when a store mutation
	// fails mid-record. The record's remaining work is abandoned and the
	// batch continues.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry record context for retry
// =============================================================================

// PersistenceError carries enough context (row, APN, address, operation)
// for the failed record to be retried later from the batch report.
type PersistenceError struct {
	RowNum  int
	APN     string
	Address string
	Op      string // which store operation failed
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("row %d (apn=%q addr=%q): %s: %v",
		e.RowNum, e.APN, e.Address, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal reports whether the error must abort the batch. Only pre-flight
// failures (index load, store unreachable) qualify; per-record persistence
// failures never do.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsPersistence reports whether the error is a per-record store failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
