package dto

import "github.com/fekuna/funeral-inventory-service/internal/model"

type TransferFilters struct {
	Status   model.TransferStatus `json:"status"`
	Location string               `json:"location"` // matches either end
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}
