package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// StepDataBase holds the fields shared by every per-step payload.
// One payload row exists per client and step.
type StepDataBase struct {
	ID         string            `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID   string            `gorm:"column:client_id;size:36;not null;uniqueIndex" json:"client_id"`
	Attributes datatypes.JSONMap `gorm:"column:attributes" json:"attributes,omitempty"`
	UpdatedBy  string            `gorm:"column:updated_by;size:36" json:"updated_by"`
	CreatedAt  time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

// Base exposes the shared fields.
func (b *StepDataBase) Base() *StepDataBase { return b }

// StepPayload is implemented by the five per-step payload types.
type StepPayload interface {
	StepNumber() int
	Base() *StepDataBase
}

// Step1Data covers price finalization and the solar loan.
type Step1Data struct {
	StepDataBase
	PriceFinalized   decimal.Decimal `gorm:"column:price_finalized;type:decimal(14,2)" json:"price_finalized"`
	SystemCapacityKW float64         `gorm:"column:system_capacity_kw" json:"system_capacity_kw" binding:"gte=0"`
	PanelBrand       string          `gorm:"column:panel_brand;size:128" json:"panel_brand,omitempty"`
	LoanRequired     bool            `gorm:"column:loan_required" json:"loan_required"`
	LoanProvider     string          `gorm:"column:loan_provider;size:128" json:"loan_provider,omitempty"`
	LoanAmount       decimal.Decimal `gorm:"column:loan_amount;type:decimal(14,2)" json:"loan_amount"`
	LoanStatus       string          `gorm:"column:loan_status;size:32" json:"loan_status,omitempty" binding:"omitempty,oneof=applied sanctioned disbursed rejected"`
	FinalizedAt      *time.Time      `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
	Notes            string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Step1Data) TableName() string { return "step1_data" }
func (*Step1Data) StepNumber() int  { return 1 }

// Step2Data covers the site survey.
type Step2Data struct {
	StepDataBase
	SurveyDate            *time.Time `gorm:"column:survey_date" json:"survey_date,omitempty"`
	SurveyorName          string     `gorm:"column:surveyor_name;size:128" json:"surveyor_name,omitempty"`
	RoofType              string     `gorm:"column:roof_type;size:32" json:"roof_type,omitempty" binding:"omitempty,oneof=rcc tin-shed tile ground"`
	RoofAreaSqFt          float64    `gorm:"column:roof_area_sqft" json:"roof_area_sqft" binding:"gte=0"`
	ShadowFree            bool       `gorm:"column:shadow_free" json:"shadow_free"`
	RecommendedCapacityKW float64    `gorm:"column:recommended_capacity_kw" json:"recommended_capacity_kw" binding:"gte=0"`
	Notes                 string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Step2Data) TableName() string { return "step2_data" }
func (*Step2Data) StepNumber() int  { return 2 }

// Step3Data covers material dispatch and installation.
type Step3Data struct {
	StepDataBase
	DispatchDate     *time.Time `gorm:"column:dispatch_date" json:"dispatch_date,omitempty"`
	VehicleNumber    string     `gorm:"column:vehicle_number;size:32" json:"vehicle_number,omitempty"`
	PanelCount       int        `gorm:"column:panel_count" json:"panel_count" binding:"gte=0"`
	InverterModel    string     `gorm:"column:inverter_model;size:128" json:"inverter_model,omitempty"`
	InverterSerial   string     `gorm:"column:inverter_serial;size:128" json:"inverter_serial,omitempty"`
	InstallationTeam string     `gorm:"column:installation_team;size:255" json:"installation_team,omitempty"`
	InstalledAt      *time.Time `gorm:"column:installed_at" json:"installed_at,omitempty"`
	Notes            string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Step3Data) TableName() string { return "step3_data" }
func (*Step3Data) StepNumber() int  { return 3 }

// Step4Data covers the government portal registration and net metering.
type Step4Data struct {
	StepDataBase
	PortalName        string     `gorm:"column:portal_name;size:128" json:"portal_name,omitempty"`
	ApplicationNumber string     `gorm:"column:application_number;size:64" json:"application_number,omitempty"`
	SubmittedAt       *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	NetMeterApplied   bool       `gorm:"column:net_meter_applied" json:"net_meter_applied"`
	NetMeterNumber    string     `gorm:"column:net_meter_number;size:64" json:"net_meter_number,omitempty"`
	InspectionDate    *time.Time `gorm:"column:inspection_date" json:"inspection_date,omitempty"`
	Notes             string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Step4Data) TableName() string { return "step4_data" }
func (*Step4Data) StepNumber() int  { return 4 }

// Step5Data covers bank details and the subsidy claim.
type Step5Data struct {
	StepDataBase
	BankName          string          `gorm:"column:bank_name;size:128" json:"bank_name,omitempty"`
	AccountHolder     string          `gorm:"column:account_holder;size:128" json:"account_holder,omitempty"`
	AccountNumber     string          `gorm:"column:account_number;size:34" json:"account_number,omitempty" binding:"omitempty,numeric,max=34"`
	IFSC              string          `gorm:"column:ifsc;size:11" json:"ifsc,omitempty" binding:"omitempty,len=11,alphanum"`
	SubsidyAmount     decimal.Decimal `gorm:"column:subsidy_amount;type:decimal(14,2)" json:"subsidy_amount"`
	SubsidyStatus     string          `gorm:"column:subsidy_status;size:32" json:"subsidy_status,omitempty" binding:"omitempty,oneof=applied approved credited rejected"`
	SubsidyCreditedAt *time.Time      `gorm:"column:subsidy_credited_at" json:"subsidy_credited_at,omitempty"`
	Notes             string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Step5Data) TableName() string { return "step5_data" }
func (*Step5Data) StepNumber() int  { return 5 }
