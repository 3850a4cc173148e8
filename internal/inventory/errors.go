package inventory

import (
	"errors"
	"fmt"

	"github.com/fekuna/funeral-inventory-service/internal/model"
)

var (
	ErrLineNotFound        = errors.New("inventory line not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationClosed   = errors.New("reservation is no longer held")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidInput        = errors.New("invalid inventory input")
	ErrLineInUse           = errors.New("inventory line has outstanding reservations")
)

// ClosedError reports the status a reservation was found in when a commit or
// release was attempted.
type ClosedError struct {
	ReservationID string
	Status        model.ReservationStatus
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("reservation %s is %s", e.ReservationID, e.Status)
}

func (e *ClosedError) Unwrap() error {
	return ErrReservationClosed
}
