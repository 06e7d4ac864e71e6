package models

import (
	"time"
)

// DocumentFile is one uploaded file inside a step's document category.
type DocumentFile struct {
	ID           string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID     string    `gorm:"column:client_id;size:36;not null;index:idx_documents_owner,priority:1" json:"client_id"`
	Step         int       `gorm:"column:step;not null;index:idx_documents_owner,priority:2" json:"step"`
	Category     string    `gorm:"column:category;size:128;not null;index:idx_documents_owner,priority:3" json:"category"`
	OriginalName string    `gorm:"column:original_name;size:255" json:"original_name"`
	StorageKey   string    `gorm:"column:storage_key;size:512" json:"storage_key"`
	Size         int64     `gorm:"column:size" json:"size"`
	MimeType     string    `gorm:"column:mime_type;size:128" json:"mime_type"`
	PageCount    int       `gorm:"column:page_count" json:"page_count,omitempty"`
	UploadedBy   string    `gorm:"column:uploaded_by;size:36" json:"uploaded_by"`
	UploadedAt   time.Time `gorm:"column:uploaded_at" json:"uploaded_at"`
}

func (DocumentFile) TableName() string {
	return "document_files"
}

// GetFileSizeInMB returns the size in megabytes.
func (f *DocumentFile) GetFileSizeInMB() float64 {
	return float64(f.Size) / (1024 * 1024)
}

// GpsImage is an installation photo carrying optional geocoordinates.
type GpsImage struct {
	ID           string     `gorm:"primaryKey;column:id;size:36" json:"id"`
	ClientID     string     `gorm:"column:client_id;size:36;not null;index:idx_gps_images_owner,priority:1" json:"client_id"`
	Step         int        `gorm:"column:step;not null" json:"step"`
	Category     string     `gorm:"column:category;size:128;not null;index:idx_gps_images_owner,priority:2" json:"category"`
	OriginalName string     `gorm:"column:original_name;size:255" json:"original_name"`
	StorageKey   string     `gorm:"column:storage_key;size:512" json:"storage_key"`
	ThumbnailKey string     `gorm:"column:thumbnail_key;size:512" json:"thumbnail_key,omitempty"`
	Size         int64      `gorm:"column:size" json:"size"`
	MimeType     string     `gorm:"column:mime_type;size:128" json:"mime_type"`
	Latitude     *float64   `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude    *float64   `gorm:"column:longitude" json:"longitude,omitempty"`
	Accuracy     *float64   `gorm:"column:accuracy" json:"accuracy,omitempty"`
	Address      string     `gorm:"column:address;size:512" json:"address,omitempty"`
	CapturedAt   *time.Time `gorm:"column:captured_at" json:"captured_at,omitempty"`
	HasValidGPS  bool       `gorm:"column:has_valid_gps" json:"has_valid_gps"`
	UploadedBy   string     `gorm:"column:uploaded_by;size:36" json:"uploaded_by"`
	UploadedAt   time.Time  `gorm:"column:uploaded_at" json:"uploaded_at"`
}

func (GpsImage) TableName() string {
	return "gps_images"
}
