package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/store"
)

// GetQualityReport handles GET /api/mappings/{task_id}/quality: per-tier
// counts plus the rows worth re-mapping.
func (h *Handler) GetQualityReport(c *gin.Context) {
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

	report := point.AssessBatch(batch, classify.PathValid)
	c.JSON(http.StatusOK, report)
}
