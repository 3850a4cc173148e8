package model

import "time"

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

type TransferEvent string

const (
	EventDispatch TransferEvent = "dispatch"
	EventReceive  TransferEvent = "receive"
	EventCancel   TransferEvent = "cancel"
)

var transferTransitions = map[TransferStatus]map[TransferEvent]TransferStatus{
	TransferPending: {
		EventDispatch: TransferInTransit,
		EventCancel:   TransferCancelled,
	},
	TransferInTransit: {
		EventReceive: TransferCompleted,
		EventCancel:  TransferCancelled,
	},
}

// Next returns the status reached by applying ev, or false when ev is not
// allowed from s.
func (s TransferStatus) Next(ev TransferEvent) (TransferStatus, bool) {
	next, ok := transferTransitions[s][ev]
	return next, ok
}

func (s TransferStatus) IsTerminal() bool {
	return s == TransferCompleted || s == TransferCancelled
}

// ItemsEditable is true only before anything has been reserved.
func (s TransferStatus) ItemsEditable() bool {
	return s == TransferPending
}

// DetailsEditable covers driver and notes.
func (s TransferStatus) DetailsEditable() bool {
	return s == TransferPending || s == TransferInTransit
}

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferInTransit, TransferCompleted, TransferCancelled:
		return true
	}
	return false
}

type Transfer struct {
	ID             string         `db:"id" json:"id"`
	TransferNumber string         `db:"transfer_number" json:"transfer_number"`
	FromLocation   string         `db:"from_location" json:"from_location"`
	ToLocation     string         `db:"to_location" json:"to_location"`
	Status         TransferStatus `db:"status" json:"status"`
	DriverID       *string        `db:"driver_id" json:"driver_id,omitempty"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	DispatchedAt   *time.Time     `db:"dispatched_at" json:"dispatched_at,omitempty"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Items          []TransferItem `db:"-" json:"items"`
}

// TransferItem references the source line by id. ReservationID is filled at
// dispatch and DestinationID at receive.
type TransferItem struct {
	ID            string  `db:"id" json:"id"`
	TransferID    string  `db:"transfer_id" json:"transfer_id"`
	InventoryID   string  `db:"inventory_id" json:"inventory_id"`
	Quantity      int     `db:"quantity" json:"quantity"`
	ReservationID *string `db:"reservation_id" json:"reservation_id,omitempty"`
	DestinationID *string `db:"destination_id" json:"destination_id,omitempty"`
}
