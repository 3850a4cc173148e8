package transfer

import (
	"errors"
	"fmt"

	"github.com/fekuna/funeral-inventory-service/internal/model"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrInvalidTransfer  = errors.New("invalid transfer")
	ErrStateViolation   = errors.New("transfer is not in a state that allows this operation")
)

// StateError is returned when an operation is attempted from the wrong state.
// Nothing has been mutated when it is returned.
type StateError struct {
	Op      string
	Current model.TransferStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s transfer in state %s", e.Op, e.Current)
}

func (e *StateError) Unwrap() error {
	return ErrStateViolation
}
