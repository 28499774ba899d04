package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked means another process holds the ledger.
	ErrLocked = errors.New("ledger is locked by another process")

	// ErrInvalidEntry means an entry failed validation before append.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// WriteError is a failed durable append. The caller must not mutate the
// file the entry describes, or must roll the mutation back.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger write failed (%s): %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
