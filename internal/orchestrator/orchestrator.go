package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/remote"
)

// State identifies where a mapping run is in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateTimedOut   State = "timed_out"
	StateFailed     State = "failed"
	StateFallback   State = "fallback"
)

// InferenceClient is the slice of the remote client the orchestrator needs.
type InferenceClient interface {
	Submit(ctx context.Context, req *remote.SubmitRequest) (*remote.SubmitResponse, error)
	Poll(ctx context.Context, taskID string) (*remote.TaskStatus, error)
	Improve(ctx context.Context, req *remote.ImproveRequest) (*remote.SubmitResponse, error)
}

// Config holds the retry and polling policy for remote mapping runs.
type Config struct {
	Enabled         bool
	MaxRetries      int
	RetryBase       time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Result is the outcome of a mapping run. A run fails only on invalid input
// or a remote validation rejection; every other remote problem ends in the
// local fallback with Success still true.
type Result struct {
	Success bool                `json:"success"`
	State   State               `json:"state"`
	TaskID  string              `json:"taskId"`
	Source  point.Source        `json:"source"`
	Message string              `json:"message,omitempty"`
	Batch   *point.MappingBatch `json:"batch,omitempty"`
}

// Orchestrator drives a mapping run through submit, poll, merge and fallback.
type Orchestrator struct {
	client InferenceClient
	engine *classify.Engine
	cfg    Config
	clock  Clock
	steps  map[State]stepFunc

	// OnProgress, when set, is called after every poll with the latest
	// task progress.
	OnProgress func(point.TaskMeta)
}

type stepFunc func(ctx context.Context, r *run) State

// run is the mutable state of one mapping run moving through the machine.
type run struct {
	points []point.RawPoint
	submit func(ctx context.Context) (*remote.SubmitResponse, error)
	// base, when non-nil, is the batch an improvement run merges into.
	base *point.MappingBatch

	taskID        string
	status        *remote.TaskStatus
	validationErr *remote.ValidationError
	failMessage   string
	result        *Result
}

// New creates an orchestrator around the given remote client and local
// classification engine. A nil client behaves like a disabled remote.
func New(client InferenceClient, engine *classify.Engine, cfg Config) *Orchestrator {
	o := &Orchestrator{
		client: client,
		engine: engine,
		cfg:    cfg,
		clock:  realClock{},
	}
	o.steps = map[State]stepFunc{
		StateSubmitting: o.stepSubmitting,
		StatePolling:    o.stepPolling,
		StateCompleted:  o.stepCompleted,
		StateTimedOut:   o.stepTimedOut,
		StateFailed:     o.stepFailed,
		StateFallback:   o.stepFallback,
	}
	return o
}

// Run maps an upload of raw points. The remote service is tried first when
// enabled; any remote failure other than a validation rejection falls back to
// the local engine, so a valid upload always comes back mapped. mappingConfig
// is passed through to the remote service untouched and may be nil.
func (o *Orchestrator) Run(ctx context.Context, points []point.RawPoint, mappingConfig map[string]any) *Result {
	if len(points) == 0 {
		return &Result{Success: false, State: StateFailed, Message: "no points provided"}
	}

	r := &run{
		points: points,
		submit: func(ctx context.Context) (*remote.SubmitResponse, error) {
			return o.client.Submit(ctx, &remote.SubmitRequest{Points: points, MappingConfig: mappingConfig})
		},
	}
	return o.drive(ctx, r)
}

// Improve re-maps the low-quality subset of a completed run and merges the
// improved mappings back into the batch, superseding the old rows. Points not
// selected by the filter are untouched.
func (o *Orchestrator) Improve(ctx context.Context, points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) *Result {
	if batch == nil || len(batch.Mappings) == 0 {
		// Nothing to improve is not a failure; the caller keeps what it has.
		res := &Result{Success: true, State: StateCompleted, Message: "no original mappings to improve"}
		if batch != nil {
			res.TaskID = batch.Task.TaskID
			res.Batch = batch
		}
		return res
	}
	if !filter.Valid() {
		return &Result{Success: false, State: StateFailed, Message: fmt.Sprintf("invalid quality filter %q", filter)}
	}

	subset := o.selectForImprovement(points, batch, filter)
	if len(subset) == 0 {
		return &Result{
			Success: true,
			State:   StateCompleted,
			TaskID:  batch.Task.TaskID,
			Message: "no mappings matched the quality filter",
			Batch:   batch,
		}
	}

	r := &run{
		points: subset,
		base:   batch,
		submit: func(ctx context.Context) (*remote.SubmitResponse, error) {
			return o.client.Improve(ctx, &remote.ImproveRequest{
				OriginalMappingID: batch.Task.TaskID,
				FilterQuality:     string(filter),
				Points:            subset,
				MappingConfig: map[string]any{
					"prioritize_failed_patterns": true,
					"include_reflection":         true,
				},
			})
		},
	}
	return o.drive(ctx, r)
}

// selectForImprovement picks the raw points whose current mapping falls in
// the filtered quality tiers.
func (o *Orchestrator) selectForImprovement(points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) []point.RawPoint {
	byID := make(map[string]point.RawPoint, len(points))
	for _, rp := range points {
		byID[rp.ID] = rp
	}

	var subset []point.RawPoint
	for _, m := range batch.Mappings {
		tier := point.TierFor(point.Assess(m, classify.PathValid))
		if !filter.Matches(tier) {
			continue
		}
		rp, ok := byID[m.RawPointID]
		if !ok {
			// No raw point survived for this row; re-mapping is impossible.
			continue
		}
		subset = append(subset, rp)
	}
	return subset
}

func (o *Orchestrator) drive(ctx context.Context, r *run) *Result {
	state := StateSubmitting
	if !o.cfg.Enabled || o.client == nil {
		r.failMessage = "remote mapping disabled"
		state = StateFallback
	}

	for r.result == nil {
		step, ok := o.steps[state]
		if !ok {
			r.failMessage = fmt.Sprintf("no step for state %s", state)
			step = o.stepFallback
		}
		state = step(ctx, r)
	}
	return r.result
}

// stepSubmitting submits the run, retrying transient failures with a linear
// backoff of retryBase times the attempt number.
func (o *Orchestrator) stepSubmitting(ctx context.Context, r *run) State {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		resp, err := r.submit(ctx)
		if err == nil {
			r.taskID = resp.TaskID
			return StatePolling
		}
		lastErr = err

		var valErr *remote.ValidationError
		if errors.As(err, &valErr) {
			r.validationErr = valErr
			return StateFailed
		}

		log.Printf("submit attempt %d/%d failed: %v", attempt, o.cfg.MaxRetries, err)
		if attempt == o.cfg.MaxRetries {
			break
		}
		if err := o.clock.Sleep(ctx, o.cfg.RetryBase*time.Duration(attempt)); err != nil {
			r.failMessage = fmt.Sprintf("submission cancelled: %v", err)
			return StateFailed
		}
	}

	r.failMessage = fmt.Sprintf("submission failed after %d attempts: %v", o.cfg.MaxRetries, lastErr)
	return StateFailed
}

// stepPolling watches the task until it reaches a terminal status or the
// attempt budget runs out.
func (o *Orchestrator) stepPolling(ctx context.Context, r *run) State {
	for attempt := 1; attempt <= o.cfg.PollMaxAttempts; attempt++ {
		if err := o.clock.Sleep(ctx, o.cfg.PollInterval); err != nil {
			r.failMessage = fmt.Sprintf("polling cancelled: %v", err)
			return StateFailed
		}

		status, err := o.client.Poll(ctx, r.taskID)
		if err != nil {
			var decodeErr *remote.DecodeError
			if errors.As(err, &decodeErr) {
				r.failMessage = fmt.Sprintf("task %s returned an undecodable response: %v", r.taskID, err)
				return StateFailed
			}
			log.Printf("poll attempt %d/%d for task %s failed: %v", attempt, o.cfg.PollMaxAttempts, r.taskID, err)
			continue
		}

		r.status = status
		if o.OnProgress != nil {
			o.OnProgress(point.TaskMeta{
				TaskID:           r.taskID,
				TotalBatches:     status.TotalBatches,
				CompletedBatches: status.CompletedBatches,
				Progress:         status.Progress,
			})
		}

		switch {
		case status.Processing():
			continue
		case status.Succeeded():
			return StateCompleted
		default:
			r.failMessage = fmt.Sprintf("task %s failed remotely: %s", r.taskID, status.Message)
			return StateFailed
		}
	}

	return StateTimedOut
}

// stepCompleted merges the remote mappings with the submitted points. A point
// the remote response did not cover is mapped locally so the batch always
// covers the whole upload.
func (o *Orchestrator) stepCompleted(ctx context.Context, r *run) State {
	remoteByID := make(map[string]point.Mapping, len(r.status.Mappings))
	for _, m := range r.status.Mappings {
		remoteByID[m.RawPointID] = m
	}

	batch := r.baseBatch()
	for _, rp := range r.points {
		if m, ok := remoteByID[rp.ID]; ok {
			batch.Upsert(m)
		} else {
			batch.Upsert(o.engine.MapPoint(rp))
		}
	}
	batch.Recompute()
	batch.Task = point.TaskMeta{
		TaskID:           r.taskID,
		TotalBatches:     r.status.TotalBatches,
		CompletedBatches: r.status.CompletedBatches,
		Progress:         1,
	}

	r.result = &Result{
		Success: true,
		State:   StateCompleted,
		TaskID:  r.taskID,
		Source:  point.SourceRemote,
		Batch:   batch,
	}
	return StateIdle
}

func (o *Orchestrator) stepTimedOut(ctx context.Context, r *run) State {
	r.failMessage = fmt.Sprintf("task %s did not finish within %d poll attempts", r.taskID, o.cfg.PollMaxAttempts)
	return StateFallback
}

// stepFailed decides whether the failure is terminal. A remote validation
// rejection means the input itself is bad and falling back would only map
// garbage, so it surfaces to the caller.
func (o *Orchestrator) stepFailed(ctx context.Context, r *run) State {
	if r.validationErr != nil {
		r.result = &Result{
			Success: false,
			State:   StateFailed,
			TaskID:  r.taskID,
			Message: r.validationErr.Message,
		}
		return StateIdle
	}
	return StateFallback
}

// stepFallback maps the points with the local engine. It cannot fail.
func (o *Orchestrator) stepFallback(ctx context.Context, r *run) State {
	taskID := r.taskID
	if taskID == "" {
		taskID = "local-" + uuid.NewString()
	}
	log.Printf("falling back to local mapping for task %s: %s", taskID, r.failMessage)

	batch := r.baseBatch()
	for _, rp := range r.points {
		batch.Upsert(o.engine.MapPoint(rp))
	}
	batch.Recompute()
	batch.Task = point.TaskMeta{TaskID: taskID, Progress: 1}

	r.result = &Result{
		Success: true,
		State:   StateFallback,
		TaskID:  taskID,
		Source:  point.SourceLocalFallback,
		Message: r.failMessage,
		Batch:   batch,
	}
	return StateIdle
}

// baseBatch returns the batch new mappings are merged into: a copy of the
// original for improvement runs, an empty batch otherwise.
func (r *run) baseBatch() *point.MappingBatch {
	if r.base == nil {
		return &point.MappingBatch{}
	}
	clone := &point.MappingBatch{
		Task:     r.base.Task,
		Mappings: make([]point.Mapping, len(r.base.Mappings)),
	}
	copy(clone.Mappings, r.base.Mappings)
	return clone
}
