// Package dispatch hands test runs and analyses to the execution agents.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Task types agents understand.
const (
	TaskTypeTestRun  = "test-run"
	TaskTypeAnalysis = "analysis"
)

// Task is the message an agent receives for one test run or analysis.
// Test-run fields are empty on analysis tasks and vice versa.
type Task struct {
	TaskType           string    `json:"taskType"`
	TestRunSlug        string    `json:"testRunSlug,omitempty"`
	TestVersionSlug    string    `json:"testVersionSlug,omitempty"`
	TestSlug           string    `json:"testSlug,omitempty"`
	ProjectSlug        string    `json:"projectSlug,omitempty"`
	OrganizationSlug   string    `json:"organizationSlug"`
	TestSuiteRunSlug   string    `json:"testSuiteRunSlug,omitempty"`
	AnalysisSlug       string    `json:"analysisSlug,omitempty"`
	OrganizationDomain string    `json:"organizationDomain,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UserEmail          string    `json:"userEmail"`
	Task               string    `json:"task,omitempty"`
	ModelSlug          string    `json:"modelSlug"`
	ModelProvider      string    `json:"modelProvider"`
}

// Subject is the slug of the run or analysis the task is about.
func (t *Task) Subject() string {
	if t.TaskType == TaskTypeAnalysis {
		return t.AnalysisSlug
	}
	return t.TestRunSlug
}

// Dispatcher delivers tasks to agents.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *Task) error
}

// New returns a WebhookDispatcher when url is set, a LogDispatcher otherwise.
func New(url, token string, timeout time.Duration, logger *log.Logger) Dispatcher {
	if url == "" {
		return NewLogDispatcher(logger)
	}
	return NewWebhookDispatcher(url, token, timeout)
}

// WebhookDispatcher POSTs tasks as JSON to an agent endpoint.
type WebhookDispatcher struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookDispatcher creates a dispatcher posting to url with token as bearer.
func NewWebhookDispatcher(url, token string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, task *Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver task: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent rejected task %s: status %d", task.Subject(), resp.StatusCode)
	}
	return nil
}

// LogDispatcher only logs tasks. Used when no agent endpoint is configured.
type LogDispatcher struct {
	logger *log.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(logger *log.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.WithPrefix("dispatch")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, task *Task) error {
	d.logger.Info("task queued",
		"type", task.TaskType,
		"subject", task.Subject(),
		"suite_run", task.TestSuiteRunSlug,
		"model", task.ModelSlug,
	)
	return nil
}
