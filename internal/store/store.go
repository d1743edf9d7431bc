package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"enos-mapping-backend/internal/model"
	"enos-mapping-backend/internal/orchestrator"
	"enos-mapping-backend/internal/point"
)

// ErrTaskNotFound is returned when a task id has no persisted row.
var ErrTaskNotFound = errors.New("mapping task not found")

// Store defines the interface for all database operations.
type Store interface {
	SaveResult(ctx context.Context, points []point.RawPoint, res *orchestrator.Result) error
	GetTask(ctx context.Context, taskID string) (*model.MappingTask, error)
	ListTasks(ctx context.Context, limit int) ([]model.MappingTask, error)
	GetBatch(ctx context.Context, taskID string) (*point.MappingBatch, []point.RawPoint, error)
	ApplyImprovement(ctx context.Context, originalTaskID string, points []point.RawPoint, res *orchestrator.Result) error

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// SaveResult persists a finished mapping run: one task row plus one record
// per mapped point.
func (s *gormStore) SaveResult(ctx context.Context, points []point.RawPoint, res *orchestrator.Result) error {
	if res.Batch == nil {
		return fmt.Errorf("result for task %s has no batch", res.TaskID)
	}

	task := taskRow(res)
	records := recordRows(res.TaskID, points, res.Batch)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("save task %s: %w", res.TaskID, err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("save records for task %s: %w", res.TaskID, err)
		}
		return nil
	})
}

// GetTask fetches a task row by id.
func (s *gormStore) GetTask(ctx context.Context, taskID string) (*model.MappingTask, error) {
	var task model.MappingTask
	err := s.db.WithContext(ctx).First(&task, "task_id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	return &task, nil
}

// ListTasks returns the most recent tasks, newest first.
func (s *gormStore) ListTasks(ctx context.Context, limit int) ([]model.MappingTask, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []model.MappingTask
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetBatch reconstructs a task's mapping batch and the raw points it was run
// over. Superseded rows are excluded.
func (s *gormStore) GetBatch(ctx context.Context, taskID string) (*point.MappingBatch, []point.RawPoint, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	var records []model.MappingRecord
	err = s.db.WithContext(ctx).
		Where("task_id = ? AND superseded = ?", taskID, false).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetch records for task %s: %w", taskID, err)
	}

	batch := &point.MappingBatch{
		Task: point.TaskMeta{
			TaskID:           task.TaskID,
			TotalBatches:     task.TotalBatches,
			CompletedBatches: task.CompletedBatches,
			Progress:         task.Progress,
		},
		Mappings: make([]point.Mapping, 0, len(records)),
	}
	points := make([]point.RawPoint, 0, len(records))
	for _, r := range records {
		batch.Mappings = append(batch.Mappings, mappingFromRecord(r))
		points = append(points, rawPointFromRecord(r))
	}
	batch.Recompute()
	return batch, points, nil
}

// ApplyImprovement persists an improvement run as a new task and marks the
// original task's rows superseded. The improved task carries the full merged
// batch, so reads should follow the newest task.
func (s *gormStore) ApplyImprovement(ctx context.Context, originalTaskID string, points []point.RawPoint, res *orchestrator.Result) error {
	if res.Batch == nil {
		return fmt.Errorf("improvement result for task %s has no batch", res.TaskID)
	}
	if res.TaskID == originalTaskID {
		// Nothing was re-mapped; the original rows stand.
		return nil
	}

	task := taskRow(res)
	records := recordRows(res.TaskID, points, res.Batch)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("save improved task %s: %w", res.TaskID, err)
		}
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return fmt.Errorf("save improved records for task %s: %w", res.TaskID, err)
			}
		}

		err := tx.Model(&model.MappingRecord{}).
			Where("task_id = ?", originalTaskID).
			Update("superseded", true).Error
		if err != nil {
			return fmt.Errorf("supersede records of task %s: %w", originalTaskID, err)
		}

		err = tx.Model(&model.MappingTask{}).
			Where("task_id = ?", originalTaskID).
			Update("status", model.TaskStatusSuperseded).Error
		if err != nil {
			return fmt.Errorf("supersede task %s: %w", originalTaskID, err)
		}
		return nil
	})
}

// SaveSubscription stores or refreshes a push subscription.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription by its endpoint.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Delete(&model.PushSubscription{}, "endpoint = ?", endpoint).Error
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns all stored push subscriptions.
func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func taskRow(res *orchestrator.Result) model.MappingTask {
	status := model.TaskStatusCompleted
	switch {
	case !res.Success:
		status = model.TaskStatusFailed
	case res.State == orchestrator.StateFallback:
		status = model.TaskStatusFallback
	}

	batch := res.Batch
	return model.MappingTask{
		TaskID:           res.TaskID,
		Status:           status,
		Source:           string(res.Source),
		Message:          res.Message,
		TotalBatches:     batch.Task.TotalBatches,
		CompletedBatches: batch.Task.CompletedBatches,
		Progress:         batch.Task.Progress,
		Total:            batch.Stats.Total,
		Mapped:           batch.Stats.Mapped,
		Errors:           batch.Stats.Errors,
		DeviceCount:      batch.Stats.DeviceCount,
		DeviceTypeCount:  batch.Stats.DeviceTypeCount,
	}
}

func recordRows(taskID string, points []point.RawPoint, batch *point.MappingBatch) []model.MappingRecord {
	byID := make(map[string]point.RawPoint, len(points))
	for _, rp := range points {
		byID[rp.ID] = rp
	}

	records := make([]model.MappingRecord, 0, len(batch.Mappings))
	for _, m := range batch.Mappings {
		rp := byID[m.RawPointID]
		records = append(records, model.MappingRecord{
			TaskID:         taskID,
			RawPointID:     m.RawPointID,
			RawPointName:   m.RawPointName,
			PointType:      rp.Type,
			Unit:           m.Unit,
			DeviceType:     rp.DeviceType,
			DeviceID:       rp.DeviceID,
			DeviceClass:    string(m.DeviceClass),
			DeviceInstance: m.DeviceInstance,
			Category:       m.Category,
			SchemaPath:     m.SchemaPath,
			Confidence:     m.Confidence,
			Source:         string(m.Source),
			Status:         string(m.Status),
			Issues:         joinIssues(m.Issues),
		})
	}
	return records
}

func mappingFromRecord(r model.MappingRecord) point.Mapping {
	return point.Mapping{
		RawPointID:     r.RawPointID,
		RawPointName:   r.RawPointName,
		Unit:           r.Unit,
		DeviceClass:    point.DeviceClass(r.DeviceClass),
		DeviceInstance: r.DeviceInstance,
		Category:       r.Category,
		SchemaPath:     r.SchemaPath,
		Confidence:     r.Confidence,
		Source:         point.Source(r.Source),
		Status:         point.Status(r.Status),
		Issues:         splitIssues(r.Issues),
	}
}

func rawPointFromRecord(r model.MappingRecord) point.RawPoint {
	return point.RawPoint{
		ID:         r.RawPointID,
		Name:       r.RawPointName,
		Type:       r.PointType,
		Unit:       r.Unit,
		DeviceType: r.DeviceType,
		DeviceID:   r.DeviceID,
	}
}

func joinIssues(issues []point.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = string(issue)
	}
	return strings.Join(parts, ",")
}

func splitIssues(s string) []point.Issue {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	issues := make([]point.Issue, len(parts))
	for i, p := range parts {
		issues[i] = point.Issue(p)
	}
	return issues
}
