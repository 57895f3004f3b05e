package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionSubmitRequest   = "SUBMIT_REQUEST"
	ActionApproveRequest  = "APPROVE_REQUEST"
	ActionRejectRequest   = "REJECT_REQUEST"
	ActionSendBackRequest = "SEND_BACK_REQUEST"
	ActionResubmitRequest = "RESUBMIT_REQUEST"
	ActionCancelRequest   = "CANCEL_REQUEST"
	ActionFulfillRequest  = "FULFILL_REQUEST"
	ActionAssignRequest   = "ASSIGN_REQUEST"
	ActionCompleteRequest = "COMPLETE_REQUEST"

	ActionCreateUser      = "CREATE_USER"
	ActionUpdateUserRoles = "UPDATE_USER_ROLES"
	ActionCreateVehicle   = "CREATE_VEHICLE"
	ActionCreateDriver    = "CREATE_DRIVER"
	ActionCreateProduct   = "CREATE_PRODUCT"
	ActionRestockProduct  = "RESTOCK_PRODUCT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User          `gorm:"foreignKey:UserID" json:"user"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    datatypes.JSON `json:"details"`                                        // Serialized JSON payload of the action
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
