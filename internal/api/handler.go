package api

import (
	"context"
	"log"

	"github.com/SherClockHolmes/webpush-go"

	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/notification"
	"enos-mapping-backend/internal/orchestrator"
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/store"
)

// Mapper abstracts the mapping orchestration so handlers can be tested with
// a stub.
type Mapper interface {
	Run(ctx context.Context, points []point.RawPoint, mappingConfig map[string]any) *orchestrator.Result
	Improve(ctx context.Context, points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) *orchestrator.Result
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	mapper  Mapper
	engine  *classify.Engine
	pool    *notification.WorkerPool
	webpush *webpush.Options
}

// NewHandler creates a new API handler. The worker pool may be nil when push
// notifications are not configured.
func NewHandler(s store.Store, mapper Mapper, engine *classify.Engine, pool *notification.WorkerPool, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		mapper:  mapper,
		engine:  engine,
		pool:    pool,
		webpush: webpushOptions,
	}
}

// notify dispatches a terminal-task notification if the pool is running.
func (h *Handler) notify(taskID string) {
	if h.pool == nil {
		return
	}
	h.pool.Dispatch(taskID)
	log.Printf("Dispatched notification for task %s", taskID)
}
