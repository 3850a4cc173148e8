package dto

import (
	"github.com/fekuna/funeral-inventory-service/internal/model"
	"github.com/shopspring/decimal"
)

// QuantityInput drives the raw reserve and release primitives.
type QuantityInput struct {
	InventoryID string `json:"inventory_id"`
	Amount      int    `json:"amount"`
	Reason      string `json:"reason"`
	CaseID      string `json:"case_id"`
	TransferID  string `json:"transfer_id"`
	RecordedBy  string `json:"-"`
}

type CommitInput struct {
	InventoryID string `json:"inventory_id"`
	Amount      int    `json:"amount"`
	CaseID      string `json:"case_id"`
	Reason      string `json:"reason"`
	RecordedBy  string `json:"-"`
}

type HoldInput struct {
	InventoryID   string              `json:"inventory_id"`
	Amount        int                 `json:"amount"`
	ReferenceType model.ReferenceType `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
	Reason        string              `json:"reason"`
	RecordedBy    string              `json:"-"`
}

type ResolveHoldInput struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
	RecordedBy    string `json:"-"`
}

// AdjustInput changes stock_quantity directly. Type defaults to adjustment;
// the transfer orchestrator uses transfer_in and transfer_out.
type AdjustInput struct {
	InventoryID string             `json:"inventory_id"`
	Delta       int                `json:"delta"`
	Type        model.MovementType `json:"type"`
	CaseID      string             `json:"case_id"`
	TransferID  string             `json:"transfer_id"`
	Reason      string             `json:"reason"`
	RecordedBy  string             `json:"-"`
}

type CreateLineInput struct {
	Name              string          `json:"name"`
	Model             string          `json:"model"`
	Color             string          `json:"color"`
	Category          string          `json:"category"`
	SKU               string          `json:"sku"`
	Description       string          `json:"description"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	InitialStock      int             `json:"initial_stock"`
	Location          string          `json:"location"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
	RecordedBy        string          `json:"-"`
}

// FindItemInput is a free-text casket description plus the branch to search.
type FindItemInput struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Branch   string `json:"branch"`
	Category string `json:"category"`
}
