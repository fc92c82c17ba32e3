package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractionStatus represents the lifecycle state of a template's on-disk tree
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionExtracting ExtractionStatus = "extracting"
	ExtractionComplete   ExtractionStatus = "complete"
	ExtractionFailed     ExtractionStatus = "failed"
	ExtractionUnknown    ExtractionStatus = "unknown"
)

// Template represents a named, versioned script-template bundle
type Template struct {
	ID          uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	OwnerID     string    `gorm:"index;not null" json:"owner_id"`
	Name        string    `gorm:"not null" json:"name"`
	Version     string    `gorm:"not null" json:"version"`
	Description string    `json:"description"`
	Bucket      string    `json:"bucket"` // Lifecycle bucket, e.g. "Default" or "Custom"

	ExtractionStatus   ExtractionStatus `gorm:"index;not null;default:'pending'" json:"extraction_status"`
	ExtractionPath     string           `json:"extraction_path"` // Owner-scoped relative path to the unpacked tree
	LastExtractionDate *time.Time       `json:"last_extraction_date,omitempty"`

	// LegacyStatusBlob is a redundant JSON copy of the extraction fields
	// kept for readers that have not migrated. It must be rewritten in
	// the same persistence call as the dedicated fields.
	LegacyStatusBlob string `gorm:"type:text" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// LegacyStatus mirrors the embedded-status blob schema still consumed by
// older readers.
type LegacyStatus struct {
	Status      string     `json:"status"`
	Path        string     `json:"path"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}
