package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoshaviv/flow-tester-sub001/internal/logger"
)

func sampleTask() *Task {
	return &Task{
		TaskType:         TaskTypeTestRun,
		TestRunSlug:      "run-1",
		TestVersionSlug:  "ver-1",
		TestSlug:         "login",
		ProjectSlug:      "shop",
		OrganizationSlug: "acme",
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UserEmail:        "dev@acme.io",
		Task:             "log in and check the dashboard",
		ModelSlug:        "gemini-2.5-flash",
		ModelProvider:    "Google",
	}
}

func TestWebhookDispatcher_Dispatch(t *testing.T) {
	var got map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := NewWebhookDispatcher(server.URL, "secret", time.Second)
	require.NoError(t, d.Dispatch(context.Background(), sampleTask()))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "test-run", got["taskType"])
	assert.Equal(t, "run-1", got["testRunSlug"])
	assert.Equal(t, "log in and check the dashboard", got["task"])
	assert.NotContains(t, got, "testSuiteRunSlug")
}

func TestWebhookDispatcher_AnalysisTask(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	task := &Task{
		TaskType:           TaskTypeAnalysis,
		AnalysisSlug:       "analysis-1",
		OrganizationSlug:   "acme",
		OrganizationDomain: "acme.io",
		UserEmail:          "owner@acme.io",
		ModelSlug:          "gemini-2.5-flash",
		ModelProvider:      "Google",
	}
	err := NewWebhookDispatcher(server.URL, "", time.Second).Dispatch(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis-1")

	assert.Equal(t, "analysis", got["taskType"])
	assert.Equal(t, "acme.io", got["organizationDomain"])
	assert.NotContains(t, got, "testRunSlug")
	assert.NotContains(t, got, "task")
}

func TestWebhookDispatcher_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewWebhookDispatcher(server.URL, "", time.Second)
	err := d.Dispatch(context.Background(), sampleTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestWebhookDispatcher_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	d := NewWebhookDispatcher(url, "", time.Second)
	assert.Error(t, d.Dispatch(context.Background(), sampleTask()))
}

func TestNew(t *testing.T) {
	l := logger.Discard()

	_, isLog := New("", "tok", time.Second, l).(*LogDispatcher)
	assert.True(t, isLog)

	_, isWebhook := New("http://agents.local", "tok", time.Second, l).(*WebhookDispatcher)
	assert.True(t, isWebhook)
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(logger.Discard())
	assert.NoError(t, d.Dispatch(context.Background(), sampleTask()))
}
