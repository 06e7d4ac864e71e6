package models

import (
	"time"
)

// Client statuses
const (
	ClientStatusActive    = "active"
	ClientStatusCompleted = "completed"
	ClientStatusOnHold    = "on-hold"
	ClientStatusCancelled = "cancelled"
)

// Client is one installation customer tracked through the five workflow steps.
type Client struct {
	ID          string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Mobile      string    `gorm:"column:mobile;size:32;index" json:"mobile"`
	Email       string    `gorm:"column:email;size:255" json:"email,omitempty"`
	Address     string    `gorm:"column:address;size:512" json:"address"`
	City        string    `gorm:"column:city;size:128" json:"city,omitempty"`
	Status      string    `gorm:"column:status;size:16;index" json:"status"`
	CurrentStep int       `gorm:"column:current_step" json:"current_step"`
	AssignedTo  string    `gorm:"column:assigned_to;size:36;index" json:"assigned_to"`
	CreatedBy   string    `gorm:"column:created_by;size:36;index:idx_clients_created_by_updated_at,priority:1" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;index:idx_clients_created_by_updated_at,priority:2" json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}

// ValidClientStatuses returns every accepted client status.
func ValidClientStatuses() []string {
	return []string{ClientStatusActive, ClientStatusCompleted, ClientStatusOnHold, ClientStatusCancelled}
}

// IsClientStatusValid checks if the given client status is valid
func IsClientStatusValid(status string) bool {
	for _, s := range ValidClientStatuses() {
		if status == s {
			return true
		}
	}
	return false
}
