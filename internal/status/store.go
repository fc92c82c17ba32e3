// Package status owns the authoritative record of a template's extraction
// lifecycle. The record carries two representations, a dedicated status
// field and a legacy embedded-status blob, which are always written in a
// single persistence call so they cannot drift.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no template record exists for the given id.
var ErrNotFound = errors.New("template not found")

// View is the lifecycle state of a template as resolved on read, falling
// back to the legacy blob for records that predate the dedicated fields.
type View struct {
	Status      models.ExtractionStatus
	Path        string
	LastUpdated *time.Time
}

// Store is the single entry point for lifecycle transitions. Both the
// worker's direct callback and the reconciliation scanner go through it,
// so the dual-write invariant holds regardless of which actor transitions
// the record.
type Store interface {
	// SetStatus transitions a template's lifecycle state. An empty path
	// leaves the recorded path untouched.
	SetStatus(ctx context.Context, id uuid.UUID, st models.ExtractionStatus, relPath string) (*models.Template, error)

	// GetStatus resolves the lifecycle state, preferring the dedicated
	// fields and degrading to the legacy blob, then to unknown.
	GetStatus(ctx context.Context, id uuid.UUID) (View, error)

	// Get loads the full template record.
	Get(ctx context.Context, id uuid.UUID) (*models.Template, error)

	// ListUnresolved returns all templates whose lifecycle has not reached
	// a terminal state: pending records, and extracting records whose
	// worker may have finished without a reachable callback.
	ListUnresolved(ctx context.Context) ([]models.Template, error)
}

// GormStore is the database-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var tpl models.Template
	if err := s.db.WithContext(ctx).First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return &tpl, nil
}

func (s *GormStore) SetStatus(ctx context.Context, id uuid.UUID, st models.ExtractionStatus, relPath string) (*models.Template, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tpl.ExtractionStatus = st
	if relPath != "" {
		tpl.ExtractionPath = relPath
	}
	tpl.LastExtractionDate = &now

	blob, err := json.Marshal(models.LegacyStatus{
		Status:      string(st),
		Path:        tpl.ExtractionPath,
		LastUpdated: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal legacy status blob: %w", err)
	}
	tpl.LegacyStatusBlob = string(blob)

	// One Updates call covers both representations; partially updating
	// only one of them is a data-integrity bug.
	err = s.db.WithContext(ctx).Model(tpl).Updates(map[string]interface{}{
		"extraction_status":    tpl.ExtractionStatus,
		"extraction_path":      tpl.ExtractionPath,
		"last_extraction_date": tpl.LastExtractionDate,
		"legacy_status_blob":   tpl.LegacyStatusBlob,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to persist status transition: %w", err)
	}

	slog.Info("Template status transition",
		"template_id", id, "status", st, "path", tpl.ExtractionPath)
	return tpl, nil
}

func (s *GormStore) GetStatus(ctx context.Context, id uuid.UUID) (View, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return Resolve(tpl), nil
}

func (s *GormStore) ListUnresolved(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).
		Where("extraction_status IN ?", []models.ExtractionStatus{
			models.ExtractionPending,
			models.ExtractionExtracting,
		}).
		Order("created_at ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved templates: %w", err)
	}
	return templates, nil
}

// Resolve computes the read view of a record: dedicated fields when
// present, else the legacy blob. A malformed blob is treated as no legacy
// data, so the read degrades to unknown instead of failing the request.
func Resolve(tpl *models.Template) View {
	if tpl.ExtractionStatus != "" {
		return View{
			Status:      tpl.ExtractionStatus,
			Path:        tpl.ExtractionPath,
			LastUpdated: tpl.LastExtractionDate,
		}
	}

	if tpl.LegacyStatusBlob != "" {
		var legacy models.LegacyStatus
		if err := json.Unmarshal([]byte(tpl.LegacyStatusBlob), &legacy); err != nil {
			slog.Warn("Malformed legacy status blob, degrading to unknown",
				"template_id", tpl.ID, "error", err)
		} else if legacy.Status != "" {
			return View{
				Status:      models.ExtractionStatus(legacy.Status),
				Path:        legacy.Path,
				LastUpdated: legacy.LastUpdated,
			}
		}
	}

	return View{Status: models.ExtractionUnknown, Path: tpl.ExtractionPath}
}
