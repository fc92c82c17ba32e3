package handlers

import (
	"errors"
	"net/http"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobHandler struct {
	db *gorm.DB
}

func NewJobHandler(db *gorm.DB) *JobHandler {
	return &JobHandler{db: db}
}

// ListJobs returns extraction jobs, newest first, optionally filtered by
// template.
func (h *JobHandler) ListJobs(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if tplID := c.Query("template_id"); tplID != "" {
		query = query.Where("template_id = ?", tplID)
	}

	var jobs []models.ExtractionJob
	if err := query.Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch jobs"})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetJob returns a single extraction job.
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid job ID"})
		return
	}

	var job models.ExtractionJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch job"})
		return
	}

	c.JSON(http.StatusOK, job)
}
