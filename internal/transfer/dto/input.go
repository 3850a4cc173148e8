package dto

type ItemInput struct {
	InventoryID string `json:"inventory_id"`
	Quantity    int    `json:"quantity"`
}

type CreateTransferInput struct {
	FromLocation string      `json:"from_location"`
	ToLocation   string      `json:"to_location"`
	Items        []ItemInput `json:"items"`
	DriverID     *string     `json:"driver_id"`
	Notes        *string     `json:"notes"`
	CreatedBy    string      `json:"-"`
}

// UpdateTransferInput leaves nil fields untouched. Items and locations may
// only change while the transfer is pending.
type UpdateTransferInput struct {
	ID           string      `json:"id"`
	FromLocation *string     `json:"from_location"`
	ToLocation   *string     `json:"to_location"`
	Items        []ItemInput `json:"items"`
	DriverID     *string     `json:"driver_id"`
	Notes        *string     `json:"notes"`
}

type TransitionInput struct {
	ID     string `json:"id"`
	Actor  string `json:"-"`
	Reason string `json:"reason"`
}
