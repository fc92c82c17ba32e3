package worker

import (
	"context"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/google/uuid"
)

// Reporter adapts the status store to the extractor's direct callback
// interface. In-process workers always have one; the marker fallback
// covers the case where the store write itself fails.
type Reporter struct {
	Store status.Store
}

func (r Reporter) ReportStatus(ctx context.Context, templateID uuid.UUID, st models.ExtractionStatus, relPath string) error {
	_, err := r.Store.SetStatus(ctx, templateID, st, relPath)
	return err
}
