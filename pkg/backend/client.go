// Package backend implements the external registration/candidate-submission
// contract spec §4.7/§4.8/§6.4 describe: createTaskOnContract and
// updateTaskCandidates. When no backend URL is configured a mock-success
// path is used and a synthetic task id is returned (spec §6.4), matching
// how a brokerage core that owns no execution surface of its own still
// needs a deterministic no-op path for local/dev runs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
)

// CreateTaskResult is createTaskOnContract's return value (spec §4.7 step 4).
type CreateTaskResult struct {
	TaskID  string
	Success bool
	Error   string
}

// CandidateSubmission is the wire payload submitted to the backend once
// matching completes (spec §6.2).
type CandidateSubmission struct {
	TaskID                string   `json:"taskId"`
	WorkflowPlanURI       string   `json:"workflowPlanUri,omitempty"`
	CandidateProcessorIDs []string `json:"candidateProcessorIds,omitempty"`
	CandidatePrices       []float64 `json:"candidatePrices,omitempty"`
}

// Client talks to the external backend contract over HTTP, grounded on the
// teacher's pkg/runbook.GitHubClient shape (http.Client with a fixed
// timeout, context-scoped requests, bearer-token auth).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func New(cfg config.BackendConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
	}
}

// CreateTaskOnContract registers a newly clarified task with the backend. In
// the absence of a configured URL, it returns a synthetic task id via the
// mock-success path (spec §6.4).
func (c *Client) CreateTaskOnContract(ctx context.Context, requesterID, specificationURI string) (CreateTaskResult, error) {
	if c.baseURL == "" {
		return CreateTaskResult{TaskID: uuid.NewString(), Success: true}, nil
	}

	body, _ := json.Marshal(map[string]string{
		"requesterId":      requesterID,
		"specificationUri": specificationURI,
	})
	var out struct {
		TaskID  string `json:"taskId"`
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.post(ctx, "/tasks", body, &out); err != nil {
		return CreateTaskResult{}, err
	}
	return CreateTaskResult{TaskID: out.TaskID, Success: out.Success, Error: out.Error}, nil
}

// UpdateTaskCandidates submits the matching result to the backend (spec
// §4.8). In the absence of a configured URL this is a mock-success no-op.
func (c *Client) UpdateTaskCandidates(ctx context.Context, submission CandidateSubmission) error {
	if c.baseURL == "" {
		return nil
	}
	body, _ := json.Marshal(submission)
	return c.post(ctx, fmt.Sprintf("/tasks/%s/candidates", submission.TaskID), body, nil)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apierrors.Wrap(apierrors.KindValidation, "backend_request_invalid", "build backend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUnknown, "backend_request_failed", fmt.Sprintf("backend call to %s failed", path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierrors.New(apierrors.KindUnknown, "backend_non_2xx", fmt.Sprintf("backend returned status %d for %s", resp.StatusCode, path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierrors.Wrap(apierrors.KindUnknown, "backend_response_undecodable", "decode backend response", err)
	}
	return nil
}
