package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the state of an extraction job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ExtractionJob represents one dispatched unpack of a template archive
type ExtractionJob struct {
	ID          uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	TemplateID  uuid.UUID `gorm:"type:text;index" json:"template_id"`
	Template    Template  `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	ArchiveName string    `gorm:"not null" json:"archive_name"`
	Version     string    `gorm:"not null" json:"version"`
	Status      JobStatus `gorm:"not null;default:'pending'" json:"status"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`

	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (j *ExtractionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
