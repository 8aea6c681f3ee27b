package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// Schedule registers a periodic producer. The entry is persisted so the
// producer survives restarts; registering an existing id replaces its period
// and payload.
func (b *BadgerBroker) Schedule(ctx context.Context, entry interfaces.ScheduleEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("schedule entry id is required")
	}
	if entry.Period <= 0 {
		return fmt.Errorf("schedule entry period must be positive")
	}

	if err := b.store.Upsert("schedule:"+entry.ID, &entry); err != nil {
		return fmt.Errorf("failed to persist schedule entry: %w", err)
	}

	b.startProducer(entry)
	return nil
}

// resumeSchedules restarts producers persisted by a previous run.
func (b *BadgerBroker) resumeSchedules() error {
	var entries []interfaces.ScheduleEntry
	if err := b.store.Find(&entries, nil); err != nil {
		return fmt.Errorf("failed to load schedule entries: %w", err)
	}
	for _, entry := range entries {
		b.startProducer(entry)
	}
	return nil
}

func (b *BadgerBroker) startProducer(entry interfaces.ScheduleEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if stop, ok := b.schedules[entry.ID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	b.schedules[entry.ID] = stop

	b.wg.Add(1)
	go b.runProducer(entry, stop)
}

func (b *BadgerBroker) runProducer(entry interfaces.ScheduleEntry, stop chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(entry.Period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			payload := interfaces.TaskPayload{
				TaskName: entry.TaskName,
				Kwargs:   entry.Kwargs,
			}
			if err := b.Enqueue(context.Background(), entry.Queue, payload, entry.Priority, 0); err != nil {
				b.logger.Warn().
					Str("schedule", entry.ID).
					Str("task", entry.TaskName).
					Err(err).
					Msg("Failed to enqueue scheduled task")
			}
		}
	}
}
