package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryLine is one pile of a casket variant at one branch.
type InventoryLine struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Model             *string         `db:"model" json:"model,omitempty"`
	Color             *string         `db:"color" json:"color,omitempty"`
	Category          string          `db:"category" json:"category"`
	SKU               *string         `db:"sku" json:"sku,omitempty"`
	Description       *string         `db:"description" json:"description,omitempty"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	StockQuantity     int             `db:"stock_quantity" json:"stock_quantity"`
	ReservedQuantity  int             `db:"reserved_quantity" json:"reserved_quantity"`
	Location          string          `db:"location" json:"location"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	IsGhost           bool            `db:"is_ghost" json:"is_ghost"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

func (l *InventoryLine) AvailableQuantity() int {
	return l.StockQuantity - l.ReservedQuantity
}

// IsLow reports whether the line has crossed its alerting threshold.
func (l *InventoryLine) IsLow() bool {
	return l.AvailableQuantity() <= l.LowStockThreshold
}

// Label renders "<Name> - <Model>", the convention case records use.
func (l *InventoryLine) Label() string {
	if l.Model != nil && *l.Model != "" {
		return l.Name + " - " + *l.Model
	}
	return l.Name
}

type MovementType string

const (
	MovementReservation MovementType = "reservation"
	MovementRelease     MovementType = "release"
	MovementSale        MovementType = "sale"
	MovementAdjustment  MovementType = "adjustment"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
)

// StockMovement is an immutable ledger row. Previous/New track
// reserved_quantity for reservation and release rows and stock_quantity for
// every other type.
type StockMovement struct {
	ID               string       `db:"id" json:"id"`
	InventoryID      string       `db:"inventory_id" json:"inventory_id"`
	CaseID           *string      `db:"case_id" json:"case_id,omitempty"`
	TransferID       *string      `db:"transfer_id" json:"transfer_id,omitempty"`
	ReservationID    *string      `db:"reservation_id" json:"reservation_id,omitempty"`
	MovementType     MovementType `db:"movement_type" json:"movement_type"`
	QuantityChange   int          `db:"quantity_change" json:"quantity_change"`
	PreviousQuantity int          `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int          `db:"new_quantity" json:"new_quantity"`
	Reason           string       `db:"reason" json:"reason"`
	RecordedBy       string       `db:"recorded_by" json:"recorded_by"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

type ReferenceType string

const (
	ReferenceCase     ReferenceType = "case"
	ReferenceTransfer ReferenceType = "transfer"
)

// Reservation is a hold of Quantity units of one line by one case or transfer.
type Reservation struct {
	ID            string            `db:"id" json:"id"`
	InventoryID   string            `db:"inventory_id" json:"inventory_id"`
	Quantity      int               `db:"quantity" json:"quantity"`
	ReferenceType ReferenceType     `db:"reference_type" json:"reference_type"`
	ReferenceID   string            `db:"reference_id" json:"reference_id"`
	Status        ReservationStatus `db:"status" json:"status"`
	Reason        string            `db:"reason" json:"reason"`
	CreatedBy     string            `db:"created_by" json:"created_by"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
}

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityNegative AlertSeverity = "negative"
	SeverityCritical AlertSeverity = "critical"
)

// StockAlert is handed to the alerting collaborator.
type StockAlert struct {
	InventoryID       string        `json:"inventory_id"`
	Label             string        `json:"label"`
	Color             string        `json:"color,omitempty"`
	Category          string        `json:"category"`
	Location          string        `json:"location"`
	StockQuantity     int           `json:"stock_quantity"`
	ReservedQuantity  int           `json:"reserved_quantity"`
	AvailableQuantity int           `json:"available_quantity"`
	Threshold         int           `json:"threshold"`
	Severity          AlertSeverity `json:"severity"`
	Reason            string        `json:"reason"`
	RaisedAt          time.Time     `json:"raised_at"`
}

// NewStockAlert snapshots line quantities. Severity is negative once
// availability drops below zero; callers may escalate it further.
func NewStockAlert(l *InventoryLine, reason string, at time.Time) StockAlert {
	severity := SeverityLow
	if l.AvailableQuantity() < 0 {
		severity = SeverityNegative
	}
	color := ""
	if l.Color != nil {
		color = *l.Color
	}
	return StockAlert{
		InventoryID:       l.ID,
		Label:             l.Label(),
		Color:             color,
		Category:          l.Category,
		Location:          l.Location,
		StockQuantity:     l.StockQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		Threshold:         l.LowStockThreshold,
		Severity:          severity,
		Reason:            reason,
		RaisedAt:          at,
	}
}
