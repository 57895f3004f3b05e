package service

import (
	"time"

	"requisition/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type TripInput struct {
	Destination string     `json:"destination"`
	DepartureAt *time.Time `json:"departure_at"`
	ReturnAt    *time.Time `json:"return_at"`
	Passengers  int        `json:"passengers"`
}

type RequestItemInput struct {
	Name      string             `json:"name" binding:"required"`
	Category  model.ItemCategory `json:"category" binding:"required"`
	ProductID *uuid.UUID         `json:"product_id"`
	Quantity  int                `json:"quantity" binding:"required,gt=0"`
	UnitCost  decimal.Decimal    `json:"unit_cost"`
}

type CreateRequestInput struct {
	Type    model.RequestType  `json:"type" binding:"required"`
	Purpose string             `json:"purpose" binding:"required"`
	Trip    *TripInput         `json:"trip"`
	Items   []RequestItemInput `json:"items" binding:"omitempty,dive"`
}

// ApproveInput and the other action inputs carry Version, the request version the caller
// last saw. A mismatch fails with a conflict; omit it to act on whatever is current.
type ApproveInput struct {
	Comment string `json:"comment"`
	Version *int   `json:"version"`
}

type RejectInput struct {
	Reason  string `json:"reason"`
	Version *int   `json:"version"`
}

type SendBackInput struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
	Version *int   `json:"version"`
}

type CancelInput struct {
	Reason  string `json:"reason"`
	Version *int   `json:"version"`
}

type ResubmitInput struct {
	Purpose string `json:"purpose"`
	Version *int   `json:"version"`
}

type FulfillInput struct {
	Items          map[uuid.UUID]int `json:"items" binding:"required"`
	IdempotencyKey string            `json:"idempotency_key"`
	Version        *int              `json:"version"`
}

type AssignInput struct {
	DriverID  uuid.UUID `json:"driver_id" binding:"required"`
	VehicleID uuid.UUID `json:"vehicle_id" binding:"required"`
	Version   *int      `json:"version"`
}

type CompleteInput struct {
	Note    string `json:"note"`
	Version *int   `json:"version"`
}

// PendingFilter selects one page of the pending-approval feed
type PendingFilter struct {
	Type        model.RequestType
	Page        int
	Limit       int
	NewestFirst bool
}
