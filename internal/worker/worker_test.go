package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/broker"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/pipeline"
)

func setupRuntime(t *testing.T) (*Runtime, *broker.BadgerBroker) {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Broker.Path = t.TempDir()
	config.Broker.PollInterval = "10ms"
	config.Broker.VisibilityTimeout = "500ms"
	config.Broker.BackoffCap = "50ms"
	config.Broker.Jitter = false
	config.Worker.Concurrency = 2

	b, err := broker.NewBadgerBroker(common.GetLogger(), &config.Broker)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	return NewRuntime(common.GetLogger(), config, b), b
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRuntime_DispatchesTask(t *testing.T) {
	runtime, b := setupRuntime(t)

	var handled atomic.Int32
	runtime.Register("echo", func(ctx context.Context, delivery *interfaces.Delivery) error {
		handled.Add(1)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, interfaces.QueueVideoProcessing,
		interfaces.TaskPayload{TaskName: "echo"}, 5, 0))

	runtime.Start(ctx)
	defer runtime.Stop()

	waitFor(t, 3*time.Second, func() bool { return handled.Load() == 1 })

	// Acked: nothing left to reserve once the visibility window would lapse.
	time.Sleep(600 * time.Millisecond)
	_, err := b.Reserve(ctx, interfaces.QueueVideoProcessing, time.Second)
	assert.ErrorIs(t, err, broker.ErrNoMessage)
}

func TestRuntime_PermanentFailureIsNotRetried(t *testing.T) {
	runtime, b := setupRuntime(t)

	var attempts atomic.Int32
	runtime.Register("doomed", func(ctx context.Context, delivery *interfaces.Delivery) error {
		attempts.Add(1)
		return &pipeline.StepError{Step: "doomed", Permanent: true, Err: fmt.Errorf("bad input")}
	})

	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, interfaces.QueueVideoProcessing,
		interfaces.TaskPayload{TaskName: "doomed"}, 5, 0))

	runtime.Start(ctx)
	defer runtime.Stop()

	waitFor(t, 3*time.Second, func() bool { return attempts.Load() == 1 })
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRuntime_TransientFailureRetries(t *testing.T) {
	runtime, b := setupRuntime(t)

	var attempts atomic.Int32
	runtime.Register("flaky", func(ctx context.Context, delivery *interfaces.Delivery) error {
		if attempts.Add(1) == 1 {
			return fmt.Errorf("transient hiccup")
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, interfaces.QueueVideoProcessing,
		interfaces.TaskPayload{TaskName: "flaky"}, 5, 0))

	runtime.Start(ctx)
	defer runtime.Stop()

	waitFor(t, 5*time.Second, func() bool { return attempts.Load() >= 2 })
}

func TestRuntime_UnknownTaskIsDiscarded(t *testing.T) {
	runtime, b := setupRuntime(t)

	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, interfaces.QueueMaintenance,
		interfaces.TaskPayload{TaskName: "nobody_home"}, 5, 0))

	runtime.Start(ctx)
	defer runtime.Stop()

	waitFor(t, 3*time.Second, func() bool {
		_, err := b.Reserve(ctx, interfaces.QueueMaintenance, time.Second)
		return err == broker.ErrNoMessage
	})
}
