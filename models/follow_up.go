package models

import "time"

// Follow-up statuses
const (
	FollowUpPending = "pending"
	FollowUpDone    = "done"
)

// FollowUp is a dated reminder attached to a client.
type FollowUp struct {
	ID         string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID   string    `gorm:"column:client_id;size:36;not null;index" json:"client_id"`
	Note       string    `gorm:"column:note;type:text" json:"note"`
	DueDate    time.Time `gorm:"column:due_date;index" json:"due_date"`
	Status     string    `gorm:"column:status;size:16;index" json:"status"`
	AssignedTo string    `gorm:"column:assigned_to;size:36" json:"assigned_to"`
	CreatedBy  string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (FollowUp) TableName() string {
	return "follow_ups"
}
