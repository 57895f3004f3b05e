package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SupervisorLevel is the seniority level from which a user reviews their department's requests
const SupervisorLevel = 14

// Department groups users for supervisor-stage scoping
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// User represents a member of staff: roles, seniority level and department drive approval capability
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName     string         `gorm:"type:varchar(255)" json:"full_name"`
	Level        int            `gorm:"type:int;not null;default:0" json:"level"`
	DepartmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"department_id"`
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Roles        []UserRole     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"roles"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// UserRole binds one role to a user; a user may hold several at once
type UserRole struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_role" json:"-"`
	Role   Role      `gorm:"type:varchar(30);not null;uniqueIndex:idx_user_role;index" json:"role"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// HasRole reports whether the user explicitly holds role
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r.Role == role {
			return true
		}
	}
	return false
}

// RoleNames returns the user's roles in storage order
func (u *User) RoleNames() []Role {
	names := make([]Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Role)
	}
	return names
}

// IsSupervisor reports seniority-based supervisor capacity, independent of explicit roles
func (u *User) IsSupervisor() bool {
	return u.Level >= SupervisorLevel
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
