package handlers

import (
	"errors"
	"net/http"

	"github.com/deploykit/templatehub/internal/archive"
	"github.com/deploykit/templatehub/internal/models"
	"github.com/deploykit/templatehub/internal/queue"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateHandler serves the thin CRUD surface around template records and
// spawns extraction jobs on creation.
type TemplateHandler struct {
	db            *gorm.DB
	queue         queue.Queue
	store         status.Store
	archives      *archive.Store
	defaultBucket string
}

func NewTemplateHandler(db *gorm.DB, q queue.Queue, store status.Store, archives *archive.Store, defaultBucket string) *TemplateHandler {
	return &TemplateHandler{db: db, queue: q, store: store, archives: archives, defaultBucket: defaultBucket}
}

// CreateTemplateRequest is the payload for creating a template record.
type CreateTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Version     string `json:"version" binding:"required"`
	OwnerID     string `json:"owner_id" binding:"required"`
	Bucket      string `json:"bucket"`
	Description string `json:"description"`
	ArchiveName string `json:"archive_name" binding:"required"`
}

// CreateTemplate persists an initial pending record, then dispatches the
// extraction asynchronously. The response does not wait for the unpack.
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if !h.archives.Exists(req.ArchiveName) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "archive not found: " + req.ArchiveName})
		return
	}

	bucket := req.Bucket
	if bucket == "" {
		bucket = h.defaultBucket
	}

	tpl := models.Template{
		Name:             req.Name,
		Version:          req.Version,
		OwnerID:          req.OwnerID,
		Bucket:           bucket,
		Description:      req.Description,
		ExtractionStatus: models.ExtractionPending,
	}

	if err := h.db.Create(&tpl).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create template"})
		return
	}

	job := &models.ExtractionJob{
		TemplateID:  tpl.ID,
		ArchiveName: req.ArchiveName,
		Version:     req.Version,
		Status:      models.JobStatusPending,
	}

	if err := h.db.Create(job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create extraction job"})
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to queue extraction"})
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

// ListTemplates returns all templates, newest first.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if owner := c.Query("owner_id"); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}

	var templates []models.Template
	if err := query.Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch templates"})
		return
	}

	c.JSON(http.StatusOK, templates)
}

// GetTemplate returns a single template record.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid template ID"})
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

	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate soft-deletes a template record. The extracted tree stays
// on disk; cleanup is an operator concern.
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid template ID"})
		return
	}

	result := h.db.Delete(&models.Template{}, "id = ?", id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete template"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Template not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
