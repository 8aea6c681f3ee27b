package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/broker"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

func TestJanitor_EnqueuesMaintenanceTasks(t *testing.T) {
	b, err := broker.NewBadgerBroker(common.GetLogger(), &common.BrokerConfig{
		Path:       t.TempDir(),
		MaxRetries: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	config := common.NewDefaultConfig()
	config.Scheduler.ResetStuckInterval = "@every 50ms"
	config.Scheduler.CleanupInterval = "@every 1h"
	config.Scheduler.HealthInterval = "@every 1h"

	service := NewService(common.GetLogger(), config, b)
	require.NoError(t, service.Start())
	t.Cleanup(service.Stop)

	deadline := time.After(3 * time.Second)
	for {
		delivery, err := b.Reserve(context.Background(), interfaces.QueueMaintenance, time.Minute)
		if err == nil {
			assert.Equal(t, TaskResetStuck, delivery.Payload.TaskName)
			require.NoError(t, b.Ack(context.Background(), delivery))
			return
		}
		require.ErrorIs(t, err, broker.ErrNoMessage)
		select {
		case <-deadline:
			t.Fatal("janitor never enqueued a maintenance task")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestJanitor_RejectsMalformedSchedule(t *testing.T) {
	b, err := broker.NewBadgerBroker(common.GetLogger(), &common.BrokerConfig{
		Path:       t.TempDir(),
		MaxRetries: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	config := common.NewDefaultConfig()
	config.Scheduler.ResetStuckInterval = "not a schedule"

	service := NewService(common.GetLogger(), config, b)
	require.Error(t, service.Start())
}
