package models

import "time"

// PhoneNumber is one entry of the lead list.
type PhoneNumber struct {
	ID        string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Number    string    `gorm:"column:number;size:20;not null;uniqueIndex" json:"number"`
	Raw       string    `gorm:"column:raw;size:64" json:"raw"`
	Name      string    `gorm:"column:name;size:255" json:"name,omitempty"`
	Source    string    `gorm:"column:source;size:64" json:"source,omitempty"`
	CreatedBy string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PhoneNumber) TableName() string {
	return "phone_numbers"
}
