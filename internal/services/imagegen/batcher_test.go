package imagegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// fakeBroker runs each enqueued sub-task synchronously: scenes listed in
// failAt dead-letter, the rest write their output file like a worker would.
type fakeBroker struct {
	enqueued []interfaces.TaskPayload
	failAt   map[int]bool
	dead     []interfaces.DeadLetter
}

func (f *fakeBroker) Enqueue(ctx context.Context, queue string, payload interfaces.TaskPayload, priority int, delay time.Duration) error {
	f.enqueued = append(f.enqueued, payload)

	index := payload.Kwargs["split_index"].(int)
	if f.failAt[index] {
		f.dead = append(f.dead, interfaces.DeadLetter{
			MessageID: fmt.Sprintf("msg-%d", index),
			Queue:     queue,
			Payload:   payload,
			Attempts:  3,
			LastError: "generator offline",
			DeadAt:    time.Now().Add(time.Second),
		})
		return nil
	}
	outputPath := payload.Kwargs["output_path"].(string)
	return os.WriteFile(outputPath, []byte("png"), 0644)
}

func (f *fakeBroker) Reserve(ctx context.Context, queue string, visibilityTimeout time.Duration) (*interfaces.Delivery, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeBroker) Ack(ctx context.Context, delivery *interfaces.Delivery) error { return nil }

func (f *fakeBroker) Nack(ctx context.Context, delivery *interfaces.Delivery, reason string) error {
	return nil
}

func (f *fakeBroker) Schedule(ctx context.Context, entry interfaces.ScheduleEntry) error { return nil }

func (f *fakeBroker) DeadLetters(ctx context.Context, queue string, limit int) ([]interfaces.DeadLetter, error) {
	return f.dead, nil
}

func (f *fakeBroker) Ping(ctx context.Context) error { return nil }

func (f *fakeBroker) Close() error { return nil }

type fakeSingle struct{ calls int }

func (f *fakeSingle) GenerateSingle(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error) {
	f.calls++
	return &interfaces.ImageResult{Status: "success", OutputPath: req.OutputPath}, nil
}

func batchRequests(t *testing.T, scenes int) []interfaces.ImageRequest {
	t.Helper()
	dir := t.TempDir()
	reqs := make([]interfaces.ImageRequest, scenes)
	for i := range reqs {
		reqs[i] = interfaces.ImageRequest{
			Prompt:     fmt.Sprintf("scene %d", i),
			Width:      1360,
			Height:     768,
			OutputPath: filepath.Join(dir, fmt.Sprintf("scene_%03d.png", i)),
		}
	}
	return reqs
}

func TestBrokerBatcher_FansOutAndReassemblesInOrder(t *testing.T) {
	queueBroker := &fakeBroker{}
	batcher := NewBrokerBatcher(common.GetLogger(), queueBroker, &fakeSingle{}, 5*time.Millisecond)

	reqs := batchRequests(t, 4)
	results, err := batcher.GenerateBatch(context.Background(), reqs, "job-1")
	require.NoError(t, err)

	require.Len(t, queueBroker.enqueued, 4)
	for i, payload := range queueBroker.enqueued {
		assert.Equal(t, interfaces.TaskGenerateSingleImage, payload.TaskName)
		assert.Equal(t, "job-1", payload.Kwargs["job_id"])
		assert.Equal(t, i, payload.Kwargs["split_index"])
	}

	require.Len(t, results, 4)
	for i, result := range results {
		assert.Equal(t, "success", result.Status)
		assert.Equal(t, reqs[i].OutputPath, result.OutputPath)
	}
}

func TestBrokerBatcher_DeadLetteredSceneFailsInPlace(t *testing.T) {
	queueBroker := &fakeBroker{failAt: map[int]bool{2: true}}
	batcher := NewBrokerBatcher(common.GetLogger(), queueBroker, &fakeSingle{}, 5*time.Millisecond)

	results, err := batcher.GenerateBatch(context.Background(), batchRequests(t, 4), "job-1")
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "failed", results[2].Status)
	assert.Equal(t, "generator offline", results[2].Error)
	assert.Equal(t, "success", results[3].Status)
}

func TestBrokerBatcher_SinglesBypassTheQueue(t *testing.T) {
	queueBroker := &fakeBroker{}
	inner := &fakeSingle{}
	batcher := NewBrokerBatcher(common.GetLogger(), queueBroker, inner, 5*time.Millisecond)

	result, err := batcher.GenerateSingle(context.Background(), interfaces.ImageRequest{
		Prompt:     "lone scene",
		OutputPath: filepath.Join(t.TempDir(), "scene_000.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, queueBroker.enqueued)
}
