package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

func setupTestBroker(t *testing.T) *BadgerBroker {
	t.Helper()

	config := &common.BrokerConfig{
		Path:              t.TempDir(),
		PollInterval:      "10ms",
		VisibilityTimeout: "100ms",
		MaxRetries:        3,
		BackoffCap:        "1s",
		Jitter:            false,
	}

	b, err := NewBadgerBroker(common.GetLogger(), config)
	require.NoError(t, err)

	t.Cleanup(func() {
		b.Close()
	})

	return b
}

func TestBroker_EnqueueReserveAck(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	payload := interfaces.TaskPayload{
		TaskName: "process_video_job",
		Kwargs:   map[string]any{"job_id": "job-1"},
	}
	require.NoError(t, b.Enqueue(ctx, interfaces.QueueVideoProcessing, payload, 5, 0))

	delivery, err := b.Reserve(ctx, interfaces.QueueVideoProcessing, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "process_video_job", delivery.Payload.TaskName)
	assert.Equal(t, 1, delivery.DeliveryCount)
	assert.NotEmpty(t, delivery.Payload.TraceID)

	// Reserved message is invisible to a second consumer
	_, err = b.Reserve(ctx, interfaces.QueueVideoProcessing, time.Minute)
	assert.ErrorIs(t, err, ErrNoMessage)

	require.NoError(t, b.Ack(ctx, delivery))

	_, err = b.Reserve(ctx, interfaces.QueueVideoProcessing, time.Minute)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestBroker_EmptyQueue(t *testing.T) {
	b := setupTestBroker(t)

	_, err := b.Reserve(context.Background(), interfaces.QueueVideoProcessing, time.Minute)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestBroker_PriorityOrdering(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "low"}, 1, 0))
	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "high"}, 10, 0))
	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "mid"}, 5, 0))

	var order []string
	for i := 0; i < 3; i++ {
		delivery, err := b.Reserve(ctx, "q", time.Minute)
		require.NoError(t, err)
		order = append(order, delivery.Payload.TaskName)
		require.NoError(t, b.Ack(ctx, delivery))
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestBroker_DelayedVisibility(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "later"}, 5, 150*time.Millisecond))

	_, err := b.Reserve(ctx, "q", time.Minute)
	assert.ErrorIs(t, err, ErrNoMessage)

	time.Sleep(200 * time.Millisecond)

	delivery, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "later", delivery.Payload.TaskName)
}

func TestBroker_VisibilityTimeoutRedelivers(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "flaky"}, 5, 0))

	first, err := b.Reserve(ctx, "q", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, first.DeliveryCount)

	time.Sleep(100 * time.Millisecond)

	second, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.MessageID, second.MessageID)
	assert.Equal(t, 2, second.DeliveryCount)
}

func TestBroker_NackMovesToDeadLetterAfterRetries(t *testing.T) {
	b := setupTestBroker(t)
	b.config.MaxRetries = 1
	b.config.BackoffCap = "10ms"
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, "q", interfaces.TaskPayload{TaskName: "poison"}, 5, 0))

	delivery, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NoError(t, b.Nack(ctx, delivery, "transient failure"))

	// Message comes back after backoff
	deadlineCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var redelivered *interfaces.Delivery
	for {
		redelivered, err = b.Reserve(ctx, "q", time.Minute)
		if err == nil {
			break
		}
		require.ErrorIs(t, err, ErrNoMessage)
		select {
		case <-deadlineCtx.Done():
			t.Fatal("message was not redelivered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Equal(t, 2, redelivered.DeliveryCount)

	// Second nack exhausts retries
	require.NoError(t, b.Nack(ctx, redelivered, "still failing"))

	letters, err := b.DeadLetters(ctx, "q", 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "poison", letters[0].Payload.TaskName)
	assert.Equal(t, "still failing", letters[0].LastError)
	assert.Equal(t, 2, letters[0].Attempts)

	_, err = b.Reserve(ctx, "q", time.Minute)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestBroker_SchedulePersistsAndProduces(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	err := b.Schedule(ctx, interfaces.ScheduleEntry{
		ID:       "health",
		TaskName: "check_job_health",
		Queue:    interfaces.QueueMaintenance,
		Period:   30 * time.Millisecond,
		Priority: 2,
	})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		delivery, err := b.Reserve(ctx, interfaces.QueueMaintenance, time.Minute)
		if err == nil {
			assert.Equal(t, "check_job_health", delivery.Payload.TaskName)
			require.NoError(t, b.Ack(ctx, delivery))
			return
		}
		require.ErrorIs(t, err, ErrNoMessage)
		select {
		case <-deadline:
			t.Fatal("scheduled task was never produced")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBroker_ScheduleValidation(t *testing.T) {
	b := setupTestBroker(t)

	err := b.Schedule(context.Background(), interfaces.ScheduleEntry{TaskName: "x", Period: time.Second})
	require.Error(t, err)

	err = b.Schedule(context.Background(), interfaces.ScheduleEntry{ID: "x", TaskName: "x"})
	require.Error(t, err)
}
