package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"enos-mapping-backend/internal/orchestrator"
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/store"
)

type mappingRequest struct {
	Points []point.RawPoint `json:"points" binding:"required"`
	// Config is forwarded to the remote mapping service untouched.
	Config map[string]any `json:"config"`
}

// mappingResponse is the API shape for a finished mapping run.
type mappingResponse struct {
	Success  bool            `json:"success"`
	TaskID   string          `json:"taskId"`
	Source   point.Source    `json:"source"`
	State    string          `json:"state"`
	Message  string          `json:"message,omitempty"`
	Stats    point.Stats     `json:"stats"`
	Mappings []point.Mapping `json:"mappings"`
}

func resultResponse(res *orchestrator.Result) mappingResponse {
	resp := mappingResponse{
		Success: res.Success,
		TaskID:  res.TaskID,
		Source:  res.Source,
		State:   string(res.State),
		Message: res.Message,
	}
	if res.Batch != nil {
		resp.Stats = res.Batch.Stats
		resp.Mappings = res.Batch.Mappings
	}
	return resp
}

func validatePoints(points []point.RawPoint) error {
	if len(points) == 0 {
		return errors.New("points must not be empty")
	}
	seen := make(map[string]struct{}, len(points))
	for i, rp := range points {
		if rp.ID == "" {
			return fmt.Errorf("point %d has no id", i)
		}
		if rp.Name == "" {
			return fmt.Errorf("point %q has no name", rp.ID)
		}
		if _, dup := seen[rp.ID]; dup {
			return fmt.Errorf("duplicate point id %q", rp.ID)
		}
		seen[rp.ID] = struct{}{}
	}
	return nil
}

// PostMappings handles POST /api/mappings: map an uploaded point list,
// preferring the remote service with the local engine as fallback.
func (h *Handler) PostMappings(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validatePoints(req.Points); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.mapper.Run(c.Request.Context(), req.Points, req.Config)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, resultResponse(res))
		return
	}

	if err := h.store.SaveResult(c.Request.Context(), req.Points, res); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.notify(res.TaskID)

	c.JSON(http.StatusOK, resultResponse(res))
}

// PostLocalMappings handles POST /api/mappings/local: map with the local
// engine only, never touching the remote service.
func (h *Handler) PostLocalMappings(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validatePoints(req.Points); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := h.engine.MapPoints(req.Points)
	batch.Task = point.TaskMeta{TaskID: "local-" + uuid.NewString(), Progress: 1}

	res := &orchestrator.Result{
		Success: true,
		State:   orchestrator.StateFallback,
		TaskID:  batch.Task.TaskID,
		Source:  point.SourceLocalFallback,
		Batch:   &batch,
	}
	if err := h.store.SaveResult(c.Request.Context(), req.Points, res); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.notify(res.TaskID)

	c.JSON(http.StatusOK, resultResponse(res))
}

// ListMappingTasks handles GET /api/mappings.
func (h *Handler) ListMappingTasks(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	tasks, err := h.store.ListTasks(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// GetMappingTask handles GET /api/mappings/{task_id}.
func (h *Handler) GetMappingTask(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.store.GetTask(c.Request.Context(), taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	batch, _, err := h.store.GetBatch(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":     task,
		"mappings": batch.Mappings,
		"stats":    batch.Stats,
	})
}

type improveRequest struct {
	FilterQuality string `json:"filter_quality"`
}

// PostImprove handles POST /api/mappings/{task_id}/improve: re-run the
// low-quality subset of a task and supersede the original rows.
func (h *Handler) PostImprove(c *gin.Context) {
	taskID := c.Param("task_id")

	// The body is optional; an absent one means the default filter.
	var req improveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := point.FilterBelowFair
	if req.FilterQuality != "" {
		filter = point.QualityFilter(req.FilterQuality)
		if !filter.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid filter_quality %q", req.FilterQuality)})
			return
		}
	}

	batch, points, err := h.store.GetBatch(c.Request.Context(), taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res := h.mapper.Improve(c.Request.Context(), points, batch, filter)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, resultResponse(res))
		return
	}

	if err := h.store.ApplyImprovement(c.Request.Context(), taskID, points, res); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res.TaskID != taskID {
		h.notify(res.TaskID)
	}

	c.JSON(http.StatusOK, resultResponse(res))
}
