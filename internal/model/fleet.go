package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vehicle is a pool vehicle that can be assigned to an approved trip
type Vehicle struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PlateNumber string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"plate_number"`
	Model       string    `gorm:"type:varchar(100)" json:"model"`
	Seats       int       `gorm:"type:int;not null" json:"seats"`
	Available   bool      `gorm:"not null;index" json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Driver is a pool driver; UserID links to the directory when the driver has an account
type Driver struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	FullName      string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone         string     `gorm:"type:varchar(20)" json:"phone"`
	LicenseNumber string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"license_number"`
	Available     bool       `gorm:"not null;index" json:"available"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
