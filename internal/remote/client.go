package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"enos-mapping-backend/config"
)

// Client talks to the remote mapping inference service. It performs single
// requests only; retry and polling policy belong to the orchestrator.
type Client struct {
	http *resty.Client
}

// NewClient builds a client from the remote service configuration.
func NewClient(cfg *config.RemoteConfig) *Client {
	rc := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		rc.SetHeader(k, v)
	}
	return &Client{http: rc}
}

// Submit sends a batch of raw points for mapping and returns the task id to
// poll. A 400 or 422 response is returned as *ValidationError.
func (c *Client) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/mappings")
	if err != nil {
		return nil, fmt.Errorf("submit mappings: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out SubmitResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if out.TaskID == "" {
		return nil, &DecodeError{Reason: "submit response has no taskId"}
	}
	return &out, nil
}

// Poll fetches the current status of a mapping task.
func (c *Client) Poll(ctx context.Context, taskID string) (*TaskStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("taskID", taskID).
		Get("/mappings/{taskID}")
	if err != nil {
		return nil, fmt.Errorf("poll task %s: %w", taskID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return decodeTaskStatus(resp.Body())
}

// Improve re-submits the low-quality subset of a prior task, asking the
// service to take another pass at the hard points.
func (c *Client) Improve(ctx context.Context, req *ImproveRequest) (*SubmitResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/mappings/improve")
	if err != nil {
		return nil, fmt.Errorf("improve mappings: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out SubmitResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if out.TaskID == "" {
		return nil, &DecodeError{Reason: "improve response has no taskId"}
	}
	return &out, nil
}

func checkStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	code := resp.StatusCode()
	if code == http.StatusBadRequest || code == http.StatusUnprocessableEntity {
		return &ValidationError{StatusCode: code, Message: errorMessage(resp.Body())}
	}
	return fmt.Errorf("remote service returned status %d: %s", code, errorMessage(resp.Body()))
}

// errorMessage pulls a human-readable message out of an error body, falling
// back to the raw body when it is not the usual JSON envelope.
func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return string(body)
}
