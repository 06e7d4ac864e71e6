package models

import (
	"time"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type User struct {
	ID        string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name      string    `gorm:"column:name;size:255" json:"name"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex" json:"email"`
	Password  string    `gorm:"column:password;size:255" json:"-"`
	Role      string    `gorm:"column:role;size:16" json:"role"`
	Phone     string    `gorm:"column:phone;size:32" json:"phone,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

// IsRoleValid checks the given role against the known roles
func IsRoleValid(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}
