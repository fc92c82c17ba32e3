package handlers

import (
	"net/http"

	"github.com/deploykit/templatehub/internal/archive"
	"github.com/gin-gonic/gin"
)

type ArchiveHandler struct {
	archives *archive.Store
}

func NewArchiveHandler(archives *archive.Store) *ArchiveHandler {
	return &ArchiveHandler{archives: archives}
}

// UploadArchive accepts a multipart archive upload and stores it under its
// file name, ready for a subsequent template creation to reference.
func (h *ArchiveHandler) UploadArchive(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing archive file"})
		return
	}
	defer file.Close()

	if _, err := h.archives.Save(header.Filename, file); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"archive_name": header.Filename, "size": header.Size})
}
