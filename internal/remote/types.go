package remote

import (
	"fmt"

	"enos-mapping-backend/internal/point"
)

// Task status values reported by the inference service. Anything other than
// processing is terminal.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SubmitRequest is the payload of a mapping submission.
type SubmitRequest struct {
	Points        []point.RawPoint `json:"points"`
	MappingConfig map[string]any   `json:"mappingConfig,omitempty"`
}

// ImproveRequest re-submits the low-quality subset of a prior task.
type ImproveRequest struct {
	OriginalMappingID string           `json:"original_mapping_id"`
	FilterQuality     string           `json:"filter_quality"`
	Points            []point.RawPoint `json:"points"`
	MappingConfig     map[string]any   `json:"mappingConfig,omitempty"`
}

// SubmitResponse acknowledges a submission and carries the task id to poll.
type SubmitResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TaskStatus is the canonical, decoded view of one poll response.
type TaskStatus struct {
	Status           string
	BatchMode        bool
	TotalBatches     int
	CompletedBatches int
	Progress         float64
	Mappings         []point.Mapping
	Stats            *point.Stats
	Message          string
}

// Processing reports whether the task is still being worked on.
func (s *TaskStatus) Processing() bool {
	return s.Status == StatusProcessing
}

// Succeeded reports whether the task reached a successful terminal state.
func (s *TaskStatus) Succeeded() bool {
	return s.Status == StatusCompleted || s.Status == "success"
}

// ValidationError is a non-retryable rejection of a submission. The
// orchestrator surfaces it to the caller without falling back.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote validation error (status %d): %s", e.StatusCode, e.Message)
}

// DecodeError reports a remote response that does not match either of the
// supported wire shapes. Responses are decoded strictly, never guessed at.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode remote response: " + e.Reason
}
