package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TripDetails is the vehicle-request payload
type TripDetails struct {
	Destination string     `gorm:"type:varchar(255)" json:"destination,omitempty"`
	DepartureAt *time.Time `json:"departure_at,omitempty"`
	ReturnAt    *time.Time `json:"return_at,omitempty"`
	Passengers  int        `gorm:"type:int" json:"passengers,omitempty"`
}

// Request is a vehicle, ICT or store requisition moving through its approval workflow.
// Version is bumped on every transition and guards concurrent writers.
type Request struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Type          RequestType `gorm:"type:varchar(20);not null;index" json:"type"`
	RequesterID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester     *User       `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	DepartmentID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"department_id"` // requester's department at submission
	Status        Status      `gorm:"type:varchar(30);not null;index" json:"status"`
	WorkflowStage Stage       `gorm:"type:varchar(30);not null;index" json:"workflow_stage"`
	Version       int         `gorm:"type:int;not null" json:"version"`
	Purpose       string      `gorm:"type:text" json:"purpose"`
	Trip          TripDetails `gorm:"embedded;embeddedPrefix:trip_" json:"trip"`

	DriverID   *uuid.UUID `gorm:"type:uuid" json:"driver_id,omitempty"`
	VehicleID  *uuid.UUID `gorm:"type:uuid" json:"vehicle_id,omitempty"`
	AssignedBy *uuid.UUID `gorm:"type:uuid" json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`

	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	SubmittedAt  time.Time  `gorm:"not null;index" json:"submitted_at"`

	Items       []RequestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"items,omitempty"`
	Approvals   []Approval    `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"approvals"`
	Corrections []Correction  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"corrections"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// HasOutstandingItems reports whether any item is still short of its requested quantity
func (r *Request) HasOutstandingItems() bool {
	for _, item := range r.Items {
		if item.Outstanding() > 0 {
			return true
		}
	}
	return false
}

// FindItem returns the item with the given id, or nil
func (r *Request) FindItem(id uuid.UUID) *RequestItem {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i]
		}
	}
	return nil
}

// LatestUnresolvedCorrection returns the most recent open correction, or nil
func (r *Request) LatestUnresolvedCorrection() *Correction {
	for i := len(r.Corrections) - 1; i >= 0; i-- {
		if !r.Corrections[i].Resolved {
			return &r.Corrections[i]
		}
	}
	return nil
}

// EstimatedCost sums requested quantity times unit cost over all items
func (r *Request) EstimatedCost() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.RequestedQuantity))))
	}
	return total
}

// RequestItem is one line of an ICT or store request
type RequestItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Category          ItemCategory    `gorm:"type:varchar(30);not null" json:"category"`
	ProductID         *uuid.UUID      `gorm:"type:uuid;index" json:"product_id,omitempty"` // store catalogue product, when issued from stock
	RequestedQuantity int             `gorm:"type:int;not null" json:"requested_quantity"`
	FulfilledQuantity int             `gorm:"type:int;not null" json:"fulfilled_quantity"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_cost"`
}

func (i *RequestItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Outstanding is the quantity still to be issued
func (i RequestItem) Outstanding() int {
	return i.RequestedQuantity - i.FulfilledQuantity
}

// Approval is an append-only audit entry for an approve or reject decision
type Approval struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver   *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Role       Role      `gorm:"type:varchar(30);not null" json:"role"` // capacity the decision was taken under
	Stage      Stage     `gorm:"type:varchar(30);not null" json:"stage"`
	Status     Status    `gorm:"type:varchar(20);not null" json:"status"` // APPROVED or REJECTED
	Comment    string    `gorm:"type:text" json:"comment,omitempty"`
	Timestamp  time.Time `gorm:"column:acted_at;not null;index" json:"timestamp"`
}

func (a *Approval) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Correction records a send-back; it is resolved when the requester resubmits
type Correction struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"request_id"`
	RequestedBy uuid.UUID  `gorm:"type:uuid;not null" json:"requested_by"`
	Role        Role       `gorm:"type:varchar(30);not null" json:"role"`
	Stage       Stage      `gorm:"type:varchar(30);not null" json:"stage"` // stage the request was sent back from
	Reason      string     `gorm:"type:text;not null" json:"reason"`
	Comment     string     `gorm:"type:text" json:"comment,omitempty"`
	Timestamp   time.Time  `gorm:"column:raised_at;not null" json:"timestamp"`
	Resolved    bool       `gorm:"not null" json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func (c *Correction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// FulfillmentRecord is one issued quantity for one item
type FulfillmentRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID      uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	ItemID         uuid.UUID `gorm:"type:uuid;not null;index" json:"item_id"`
	Quantity       int       `gorm:"type:int;not null" json:"quantity"`
	FulfilledBy    uuid.UUID `gorm:"type:uuid;not null" json:"fulfilled_by"`
	IdempotencyKey string    `gorm:"type:varchar(100);index" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (f *FulfillmentRecord) BeforeCreate(tx *gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
