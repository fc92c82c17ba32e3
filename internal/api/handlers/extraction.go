package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/deploykit/templatehub/internal/extract"
	"github.com/deploykit/templatehub/internal/models"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExtractionHandler serves the status read/write surface and the
// reconciliation trigger.
type ExtractionHandler struct {
	store         status.Store
	scanner       *extract.Scanner
	root          string // Absolute root of the extracted template trees
	defaultBucket string
}

func NewExtractionHandler(store status.Store, scanner *extract.Scanner, root, defaultBucket string) *ExtractionHandler {
	return &ExtractionHandler{store: store, scanner: scanner, root: root, defaultBucket: defaultBucket}
}

// ExtractionStatusResponse is the composite read view: the recorded status
// plus a live probe of the directory the record points at. The recorded
// status can be stale relative to on-disk reality, so the read is itself a
// lightweight single-template reconciliation.
type ExtractionStatusResponse struct {
	Status             models.ExtractionStatus `json:"status"`
	DirectoryExists    bool                    `json:"directory_exists"`
	FileCount          int                     `json:"file_count"`
	ExtractionPath     string                  `json:"extraction_path"`
	LastExtractionDate *time.Time              `json:"last_extraction_date,omitempty"`
}

// GetExtraction returns the recorded status combined with a filesystem
// probe of the recorded path.
func (h *ExtractionHandler) GetExtraction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid template ID"})
		return
	}

	view, err := h.store.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to resolve template status"})
		return
	}

	if view.Path == "" {
		// Neither the dedicated field nor the legacy blob yields a path;
		// guessing one would hide a configuration problem.
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "No extraction path recorded for template"})
		return
	}

	resp := ExtractionStatusResponse{
		Status:             view.Status,
		ExtractionPath:     view.Path,
		LastExtractionDate: view.LastUpdated,
	}

	dir := filepath.Join(h.root, filepath.FromSlash(view.Path))
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		resp.DirectoryExists = true
		if count, err := extract.CountEntries(dir); err == nil {
			resp.FileCount = count
		}
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateExtractionRequest is the payload for a status write transition.
type UpdateExtractionRequest struct {
	Status         models.ExtractionStatus `json:"status" binding:"required"`
	ExtractionPath string                  `json:"extraction_path"`
}

var validTransitions = map[models.ExtractionStatus]bool{
	models.ExtractionPending:    true,
	models.ExtractionExtracting: true,
	models.ExtractionComplete:   true,
	models.ExtractionFailed:     true,
	models.ExtractionUnknown:    true,
}

// UpdateExtraction transitions a template's lifecycle state. A bare path
// is normalized into the canonical owner-scoped form before persisting;
// already-qualified paths pass through unchanged.
func (h *ExtractionHandler) UpdateExtraction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid template ID"})
		return
	}

	var req UpdateExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if !validTransitions[req.Status] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid extraction status: " + string(req.Status)})
		return
	}

	tpl, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch template"})
		return
	}

	relPath := req.ExtractionPath
	if relPath != "" {
		bucket := tpl.Bucket
		if bucket == "" {
			bucket = h.defaultBucket
		}
		relPath = extract.QualifyPath(tpl.OwnerID, bucket, relPath)
	}

	updated, err := h.store.SetStatus(c.Request.Context(), id, req.Status, relPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update template status"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Reconcile runs one reconciliation sweep over all non-terminal templates and
// reports how many were checked, promoted and flagged stale. Idempotent.
func (h *ExtractionHandler) Reconcile(c *gin.Context) {
	res, err := h.scanner.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Reconciliation sweep failed"})
		return
	}

	c.JSON(http.StatusOK, res)
}
