package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentLog is one payment received from a client.
type PaymentLog struct {
	ID        string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID  string          `gorm:"column:client_id;size:36;not null;index:idx_payment_logs_client_time,priority:1" json:"client_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(14,2)" json:"amount"`
	Receiver  string          `gorm:"column:receiver;size:128" json:"receiver"`
	Mode      string          `gorm:"column:mode;size:32" json:"mode,omitempty"`
	Notes     string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Timestamp time.Time       `gorm:"column:timestamp;index:idx_payment_logs_client_time,priority:2" json:"timestamp"`
	CreatedBy string          `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentLog) TableName() string {
	return "payment_logs"
}

// Expense is one cost booked against a client installation.
type Expense struct {
	ID          string                      `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID    string                      `gorm:"column:client_id;size:36;not null;index:idx_expenses_client_created,priority:1" json:"client_id"`
	Amount      decimal.Decimal             `gorm:"column:amount;type:decimal(14,2)" json:"amount"`
	ExpenseType string                      `gorm:"column:expense_type;size:64" json:"expense_type"`
	Description string                      `gorm:"column:description;type:text" json:"description,omitempty"`
	Documents   datatypes.JSONSlice[string] `gorm:"column:documents" json:"documents"`
	CreatedBy   string                      `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt   time.Time                   `gorm:"column:created_at;index:idx_expenses_client_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Expense) TableName() string {
	return "expenses"
}

// Expense types offered by the admin UI.
const (
	ExpenseTypeMaterial   = "material"
	ExpenseTypeLabour     = "labour"
	ExpenseTypeTransport  = "transport"
	ExpenseTypeCommission = "commission"
	ExpenseTypeOther      = "other"
)
