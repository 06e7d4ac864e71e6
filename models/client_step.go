package models

import (
	"time"
)

// Step and sub-step statuses. StepStatusOverdue is only accepted from
// legacy rows; overdue is derived from the due date at read time.
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in-progress"
	StepStatusOnHold     = "on-hold"
	StepStatusOverdue    = "overdue"
	StepStatusCompleted  = "completed"
)

// ClientStep is one of the five workflow stages of a client.
type ClientStep struct {
	ID          string     `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID    string     `gorm:"column:client_id;size:36;not null;uniqueIndex:idx_client_steps_client_step,priority:1" json:"client_id"`
	StepNumber  int        `gorm:"column:step_number;not null;uniqueIndex:idx_client_steps_client_step,priority:2" json:"step_number"`
	StepName    string     `gorm:"column:step_name;size:128" json:"step_name"`
	Status      string     `gorm:"column:status;size:16;index" json:"status"`
	AssignedTo  string     `gorm:"column:assigned_to;size:36;index" json:"assigned_to"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Notes       string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ClientStep) TableName() string {
	return "client_steps"
}

// ClientSubStep is a finer grained task under a step (dispatch in practice).
type ClientSubStep struct {
	ID          string     `gorm:"primaryKey;column:id;size:36" json:"id"`
	StepID      string     `gorm:"column:step_id;size:36;not null;index" json:"step_id"`
	ClientID    string     `gorm:"column:client_id;size:36;not null;index" json:"client_id"`
	Name        string     `gorm:"column:name;size:128" json:"name"`
	Order       int        `gorm:"column:sort_order" json:"sort_order"`
	Status      string     `gorm:"column:status;size:16" json:"status"`
	AssignedTo  string     `gorm:"column:assigned_to;size:36" json:"assigned_to"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ClientSubStep) TableName() string {
	return "client_sub_steps"
}

// ValidStepStatuses returns the statuses a caller may write.
func ValidStepStatuses() []string {
	return []string{StepStatusPending, StepStatusInProgress, StepStatusOnHold, StepStatusCompleted}
}

// IsStepStatusWritable reports whether status may be stored on a step or sub-step.
func IsStepStatusWritable(status string) bool {
	for _, s := range ValidStepStatuses() {
		if status == s {
			return true
		}
	}
	return false
}
