package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"enos-mapping-backend/internal/export"
	"enos-mapping-backend/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportMappings handles GET /api/mappings/{task_id}/export, returning the
// task's mappings as an xlsx download.
func (h *Handler) ExportMappings(c *gin.Context) {
	taskID := c.Param("task_id")

	batch, _, err := h.store.GetBatch(c.Request.Context(), taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := export.Excel(batch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="mappings-%s.xlsx"`, taskID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
