package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus_Legacy(t *testing.T) {
	cases := map[string]ExecutionStatus{
		"pending":     StatusPending,
		"waiting":     StatusPending,
		"processing":  StatusRunning,
		"running":     StatusRunning,
		"in_progress": StatusRunning,
		"success":     StatusSuccess,
		"completed":   StatusSuccess,
		"finished":    StatusSuccess,
		"failed":      StatusFailed,
		"error":       StatusFailed,
		"cancelled":   StatusCancelled,
		"timeout":     StatusTimeout,
		"skipped":     StatusSkipped,
	}

	for value, expected := range cases {
		status, err := ParseStatus(value)
		require.NoError(t, err, value)
		assert.Equal(t, expected, status, value)
	}
}

func TestParseStatus_Durable(t *testing.T) {
	status, err := ParseStatus("RUNNING")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)
}

func TestParseStatus_Unknown(t *testing.T) {
	_, err := ParseStatus("exploded")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]ExecutionStatus{
		{StatusPending, StatusRunning},
		{StatusPending, StatusCancelled},
		{StatusRunning, StatusSuccess},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusTimeout},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	denied := [][2]ExecutionStatus{
		{StatusPending, StatusSuccess},
		{StatusPending, StatusFailed},
		{StatusRunning, StatusCancelled},
		{StatusSuccess, StatusRunning},
		{StatusFailed, StatusRunning},
		{StatusCancelled, StatusRunning},
		{StatusTimeout, StatusRunning},
	}
	for _, edge := range denied {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestExecution_Transition(t *testing.T) {
	exec := NewJobExecution("exec-1", "job-1", "worker-a", 0)
	assert.Equal(t, StatusPending, exec.Status)
	assert.Nil(t, exec.StartedAt)
	assert.Nil(t, exec.FinishedAt)

	require.NoError(t, exec.Transition(StatusRunning, "Pipeline started"))
	require.NotNil(t, exec.StartedAt)
	assert.Nil(t, exec.FinishedAt)

	require.NoError(t, exec.Transition(StatusSuccess, "Done"))
	require.NotNil(t, exec.FinishedAt)

	// Terminal states are never left
	assert.Error(t, exec.Transition(StatusRunning, ""))
	assert.Error(t, exec.Transition(StatusFailed, ""))
}

func TestExecution_TimestampOrdering(t *testing.T) {
	exec := NewJobExecution("exec-2", "job-1", "worker-a", 0)
	created := exec.CreatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, exec.Transition(StatusRunning, ""))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, exec.Transition(StatusFailed, "boom"))

	assert.False(t, exec.StartedAt.Before(created))
	assert.False(t, exec.FinishedAt.Before(*exec.StartedAt))
}

func TestResultKeys_RoundTrip(t *testing.T) {
	video := "videos/u/j/final.mp4"
	keys := &ResultKeys{VideoKey: &video}

	data, err := keys.ToJSON()
	require.NoError(t, err)

	parsed, err := ResultKeysFromJSON(data)
	require.NoError(t, err)
	require.NotNil(t, parsed.VideoKey)
	assert.Equal(t, video, *parsed.VideoKey)
	assert.Nil(t, parsed.CoverKey)
	assert.Nil(t, parsed.AudioKey)
	assert.Nil(t, parsed.SRTKey)
}
