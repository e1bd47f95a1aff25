package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/config"
)

func TestClient_CreateTaskOnContract_MockSuccessWhenNoURL(t *testing.T) {
	c := backend.New(config.BackendConfig{})
	result, err := c.CreateTaskOnContract(context.Background(), "requester-1", "s3://specs/a.json")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.TaskID)
}

func TestClient_CreateTaskOnContract_RealBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"taskId": "t-123", "success": true})
	}))
	defer srv.Close()

	c := backend.New(config.BackendConfig{URL: srv.URL, APIKey: "secret"})
	result, err := c.CreateTaskOnContract(context.Background(), "requester-1", "s3://specs/a.json")
	require.NoError(t, err)
	require.Equal(t, "t-123", result.TaskID)
	require.True(t, result.Success)
}

func TestClient_UpdateTaskCandidates_MockSuccessWhenNoURL(t *testing.T) {
	c := backend.New(config.BackendConfig{})
	err := c.UpdateTaskCandidates(context.Background(), backend.CandidateSubmission{TaskID: "t-1", CandidateProcessorIDs: []string{"p1"}})
	require.NoError(t, err)
}

func TestClient_UpdateTaskCandidates_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := backend.New(config.BackendConfig{URL: srv.URL})
	err := c.UpdateTaskCandidates(context.Background(), backend.CandidateSubmission{TaskID: "t-1"})
	require.Error(t, err)
}
