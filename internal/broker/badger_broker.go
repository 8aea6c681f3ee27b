package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// queueMessage is the internal envelope stored in Badger.
type queueMessage struct {
	ID           string                 `json:"id"`
	Queue        string                 `json:"queue"`
	Payload      interfaces.TaskPayload `json:"payload"`
	Priority     int                    `json:"priority"`
	EnqueuedAt   time.Time              `json:"enqueued_at"`
	VisibleAt    time.Time              `json:"visible_at"`
	ReceiveCount int                    `json:"receive_count"`
	LastError    string                 `json:"last_error,omitempty"`
}

// BadgerBroker is a persistent at-least-once queue on BadgerDB. Message bodies
// live at queue:{name}:msg:{id}; a visibility index at
// queue:{name}:index:{lane}:{visibleAt}:{id} orders delivery by priority lane
// then time. Reserving a message re-keys its index entry into the future so it
// stays invisible until acked or the visibility timeout lapses.
//
// Dead letters and schedule entries are typed records in the same store via
// badgerhold; the raw queue keys and badgerhold's type-prefixed keys never
// collide.
type BadgerBroker struct {
	store  *badgerhold.Store
	db     *badger.DB
	config *common.BrokerConfig
	logger arbor.ILogger

	mu        sync.Mutex
	schedules map[string]chan struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewBadgerBroker opens (or creates) the broker store at the configured path
// and resumes any persisted schedule entries.
func NewBadgerBroker(logger arbor.ILogger, config *common.BrokerConfig) (*BadgerBroker, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create broker directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(config.Path).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open broker store: %w", err)
	}

	b := &BadgerBroker{
		store:     store,
		db:        store.Badger(),
		config:    config,
		logger:    logger,
		schedules: make(map[string]chan struct{}),
	}

	if err := b.resumeSchedules(); err != nil {
		store.Close()
		return nil, err
	}

	logger.Info().Str("path", config.Path).Msg("Broker store initialized")
	return b, nil
}

func (b *BadgerBroker) msgKey(queue, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", queue, id))
}

// indexKey orders messages by priority lane then visibility time. Lane 00 is
// priority 10 so lexicographic iteration yields highest priority first.
func (b *BadgerBroker) indexKey(queue string, priority int, visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%02d:%020d:%s", queue, 10-priority, visibleAt.UnixNano(), id))
}

func (b *BadgerBroker) indexPrefix(queue string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", queue))
}

// parseIndexKey extracts the visibility timestamp and message id from an
// index key.
func parseIndexKey(key []byte) (time.Time, string, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 6 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[5], nil
}

func (b *BadgerBroker) Enqueue(ctx context.Context, queue string, payload interfaces.TaskPayload, priority int, delay time.Duration) error {
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	if payload.TraceID == "" {
		payload.TraceID = common.NewID()
	}

	now := time.Now()
	msg := queueMessage{
		ID:         common.NewID(),
		Queue:      queue,
		Payload:    payload,
		Priority:   priority,
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}

	data, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(b.msgKey(queue, msg.ID), data); err != nil {
			return err
		}
		return txn.Set(b.indexKey(queue, priority, msg.VisibleAt, msg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	b.logger.Debug().
		Str("queue", queue).
		Str("task", payload.TaskName).
		Str("message_id", msg.ID).
		Int("priority", priority).
		Msg("Message enqueued")
	return nil
}

func (b *BadgerBroker) Reserve(ctx context.Context, queue string, visibilityTimeout time.Duration) (*interfaces.Delivery, error) {
	if visibilityTimeout <= 0 {
		visibilityTimeout = b.config.VisibilityTimeoutDuration()
	}

	var claimed queueMessage

	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := b.indexPrefix(queue)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		var oldIndexKey []byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			visibleAt, id, err := parseIndexKey(key)
			if err != nil {
				continue
			}
			if visibleAt.After(now) {
				// Keys within a lane are time-ordered but lanes are not, so a
				// future timestamp only ends this lane. Keep scanning.
				continue
			}

			item, err := txn.Get(b.msgKey(queue, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &claimed)
			}); err != nil {
				return err
			}

			oldIndexKey = key
			break
		}

		if oldIndexKey == nil {
			return ErrNoMessage
		}

		claimed.ReceiveCount++
		claimed.VisibleAt = now.Add(visibilityTimeout)

		data, err := json.Marshal(&claimed)
		if err != nil {
			return err
		}
		if err := txn.Set(b.msgKey(queue, claimed.ID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(b.indexKey(queue, claimed.Priority, claimed.VisibleAt, claimed.ID), []byte{})
	})
	if err != nil {
		if err == ErrNoMessage {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("failed to reserve message: %w", err)
	}

	return &interfaces.Delivery{
		MessageID:     claimed.ID,
		Queue:         queue,
		Payload:       claimed.Payload,
		Priority:      claimed.Priority,
		DeliveryCount: claimed.ReceiveCount,
		EnqueuedAt:    claimed.EnqueuedAt,
	}, nil
}

func (b *BadgerBroker) Ack(ctx context.Context, delivery *interfaces.Delivery) error {
	return b.db.Update(func(txn *badger.Txn) error {
		msg, err := b.readMessage(txn, delivery.Queue, delivery.MessageID)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already gone
			}
			return err
		}
		return b.removeMessage(txn, msg)
	})
}

// Nack returns a message to its queue with exponential backoff and jitter.
// Once retries are exhausted the message moves to the dead-letter stream.
func (b *BadgerBroker) Nack(ctx context.Context, delivery *interfaces.Delivery, reason string) error {
	var dead *interfaces.DeadLetter

	err := b.db.Update(func(txn *badger.Txn) error {
		msg, err := b.readMessage(txn, delivery.Queue, delivery.MessageID)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		msg.LastError = reason

		if msg.ReceiveCount > b.config.MaxRetries {
			dead = &interfaces.DeadLetter{
				MessageID:  msg.ID,
				Queue:      msg.Queue,
				Payload:    msg.Payload,
				Attempts:   msg.ReceiveCount,
				LastError:  reason,
				EnqueuedAt: msg.EnqueuedAt,
				DeadAt:     time.Now(),
			}
			return b.removeMessage(txn, msg)
		}

		oldIndexKey := b.indexKey(msg.Queue, msg.Priority, msg.VisibleAt, msg.ID)
		msg.VisibleAt = time.Now().Add(b.backoff(msg.ReceiveCount))

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(b.msgKey(msg.Queue, msg.ID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(b.indexKey(msg.Queue, msg.Priority, msg.VisibleAt, msg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}

	if dead != nil {
		if err := b.store.Upsert(dead.MessageID, dead); err != nil {
			return fmt.Errorf("failed to dead-letter message: %w", err)
		}
		b.logger.Warn().
			Str("queue", dead.Queue).
			Str("task", dead.Payload.TaskName).
			Str("message_id", dead.MessageID).
			Int("attempts", dead.Attempts).
			Str("reason", reason).
			Msg("Message moved to dead-letter stream")
	}
	return nil
}

// backoff computes the redelivery delay for the given attempt count:
// base * 2^(attempt-1) plus proportional jitter, capped.
func (b *BadgerBroker) backoff(attempt int) time.Duration {
	base := b.config.PollIntervalDuration() * 4
	if base <= 0 {
		base = 15 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base << uint(attempt-1)
	maxDelay := b.config.BackoffCapDuration()
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	if b.config.Jitter {
		delay += time.Duration(rand.Int63n(int64(delay/4) + 1))
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
	return delay
}

func (b *BadgerBroker) readMessage(txn *badger.Txn, queue, id string) (*queueMessage, error) {
	item, err := txn.Get(b.msgKey(queue, id))
	if err != nil {
		return nil, err
	}
	var msg queueMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	}); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (b *BadgerBroker) removeMessage(txn *badger.Txn, msg *queueMessage) error {
	if err := txn.Delete(b.indexKey(msg.Queue, msg.Priority, msg.VisibleAt, msg.ID)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return txn.Delete(b.msgKey(msg.Queue, msg.ID))
}

func (b *BadgerBroker) DeadLetters(ctx context.Context, queue string, limit int) ([]interfaces.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	var letters []interfaces.DeadLetter
	query := badgerhold.Where("Queue").Eq(queue).SortBy("DeadAt").Reverse().Limit(limit)
	if err := b.store.Find(&letters, query); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return letters, nil
}

func (b *BadgerBroker) Ping(ctx context.Context) error {
	return b.db.View(func(txn *badger.Txn) error { return nil })
}

func (b *BadgerBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, stop := range b.schedules {
		close(stop)
	}
	b.schedules = make(map[string]chan struct{})
	b.mu.Unlock()

	b.wg.Wait()
	return b.store.Close()
}
