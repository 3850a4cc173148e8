package dto

import (
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/model"
)

type InventoryFilters struct {
	Location string `json:"location"`
	Category string `json:"category"`
	LowStock bool   `json:"low_stock"` // available_quantity <= low_stock_threshold
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// LineSearch matches name and model case-insensitively. A nil Model matches
// any model; an empty Name matches any name. Results come back fullest first.
type LineSearch struct {
	Category string
	Name     string
	Model    *string
	Location string
}

type MovementFilters struct {
	InventoryID  string             `json:"inventory_id"`
	CaseID       string             `json:"case_id"`
	TransferID   string             `json:"transfer_id"`
	MovementType model.MovementType `json:"movement_type"`
	StartDate    *time.Time         `json:"start_date"`
	EndDate      *time.Time         `json:"end_date"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
}

type ReservationFilters struct {
	InventoryID   string                  `json:"inventory_id"`
	ReferenceType model.ReferenceType     `json:"reference_type"`
	ReferenceID   string                  `json:"reference_id"`
	Status        model.ReservationStatus `json:"status"`
}

type ReserveResult struct {
	Success             bool                 `json:"success"`
	NewReservedQuantity int                  `json:"new_reserved_quantity"`
	Line                *model.InventoryLine `json:"line"`
}

type CommitResult struct {
	Success          bool                 `json:"success"`
	NewStockQuantity int                  `json:"new_stock_quantity"`
	Line             *model.InventoryLine `json:"line"`
}
