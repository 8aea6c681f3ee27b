package interfaces

import (
	"context"
	"time"
)

// Queue names. Janitor work runs on the maintenance queue so it never starves
// user work.
const (
	QueueVideoProcessing = "video_processing"
	QueueMaintenance     = "maintenance"
)

// Data-plane task names. Maintenance task names live with the janitor that
// schedules them.
const (
	TaskProcessVideoJob     = "process_video_job"
	TaskGenerateSingleImage = "generate_single_image_task"
)

// TaskPayload is the small JSON envelope carried by every queued item.
type TaskPayload struct {
	TaskName string         `json:"task_name"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
	TraceID  string         `json:"trace_id"`
}

// Delivery is one reserved queue item. DeliveryCount starts at 1 for the
// first delivery.
type Delivery struct {
	MessageID     string
	Queue         string
	Payload       TaskPayload
	Priority      int
	DeliveryCount int
	EnqueuedAt    time.Time
}

// ScheduleEntry registers a periodic producer with the broker scheduler.
type ScheduleEntry struct {
	ID       string
	TaskName string
	Queue    string
	Period   time.Duration
	Priority int
	Kwargs   map[string]any
}

// DeadLetter is a message moved off a queue after exhausting its retries.
type DeadLetter struct {
	MessageID  string      `json:"message_id" badgerhold:"key"`
	Queue      string      `json:"queue"`
	Payload    TaskPayload `json:"payload"`
	Attempts   int         `json:"attempts"`
	LastError  string      `json:"last_error"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	DeadAt     time.Time   `json:"dead_at"`
}

// Broker is the durable queue backing task dispatch, retry and schedules.
// Delivery is at-least-once; while an item is reserved it is not delivered
// elsewhere until acked or its visibility timeout lapses.
type Broker interface {
	// Enqueue adds a payload to a queue. Priority is 1 (lowest) to 10
	// (highest); delay postpones first visibility.
	Enqueue(ctx context.Context, queue string, payload TaskPayload, priority int, delay time.Duration) error
	// Reserve returns one item or ErrNoMessage when the queue is empty.
	Reserve(ctx context.Context, queue string, visibilityTimeout time.Duration) (*Delivery, error)
	// Ack removes a reserved item permanently.
	Ack(ctx context.Context, delivery *Delivery) error
	// Nack returns an item to the queue with backoff; when max retries are
	// exceeded the item moves to the dead-letter stream.
	Nack(ctx context.Context, delivery *Delivery, reason string) error
	// Schedule registers a periodic producer. Entries persist across
	// restarts; duplicates are suppressed by task-handler idempotency.
	Schedule(ctx context.Context, entry ScheduleEntry) error
	// DeadLetters lists dead-lettered messages for a queue.
	DeadLetters(ctx context.Context, queue string, limit int) ([]DeadLetter, error)
	Ping(ctx context.Context) error
	Close() error
}
