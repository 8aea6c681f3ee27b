package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/broker"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/executor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// HandlerFunc processes one reserved delivery. A nil return acks the
// delivery; a permanent error also acks because redelivery cannot change the
// outcome; any other error nacks for retry.
type HandlerFunc func(ctx context.Context, delivery *interfaces.Delivery) error

// Runtime polls the broker queues and dispatches deliveries to registered
// task handlers under a bounded concurrency pool. Each handler runs under the
// hard timeout so a wedged encode cannot pin a slot forever.
type Runtime struct {
	broker   interfaces.Broker
	config   *common.Config
	logger   arbor.ILogger
	handlers map[string]HandlerFunc

	sem    chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

func NewRuntime(logger arbor.ILogger, config *common.Config, b interfaces.Broker) *Runtime {
	concurrency := config.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runtime{
		broker:   b,
		config:   config,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		sem:      make(chan struct{}, concurrency),
	}
}

// Register binds a task name to its handler. Registration happens before
// Start; the map is not guarded against concurrent mutation afterwards.
func (r *Runtime) Register(taskName string, handler HandlerFunc) {
	r.handlers[taskName] = handler
}

// Start launches the poll loops for the video and maintenance queues.
func (r *Runtime) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	for _, queue := range []string{interfaces.QueueVideoProcessing, interfaces.QueueMaintenance} {
		r.wg.Add(1)
		go r.pollLoop(runCtx, queue)
	}

	r.logger.Info().
		Int("concurrency", cap(r.sem)).
		Int("handlers", len(r.handlers)).
		Msg("Worker runtime started")
}

// Stop cancels the poll loops and waits for in-flight handlers to finish.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info().Msg("Worker runtime stopped")
}

func (r *Runtime) pollLoop(ctx context.Context, queue string) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.BrokerPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx, queue)
		}
	}
}

// drain reserves until the queue is empty or every slot is busy.
func (r *Runtime) drain(ctx context.Context, queue string) {
	for {
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		delivery, err := r.broker.Reserve(ctx, queue, r.config.BrokerVisibility())
		if err != nil {
			<-r.sem
			if !errors.Is(err, broker.ErrNoMessage) && ctx.Err() == nil {
				r.logger.Error().Err(err).Str("queue", queue).Msg("Reserve failed")
			}
			return
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() { <-r.sem }()
			r.dispatch(ctx, delivery)
		}()
	}
}

func (r *Runtime) dispatch(ctx context.Context, delivery *interfaces.Delivery) {
	task := delivery.Payload.TaskName
	logger := r.logger.WithCorrelationId(delivery.Payload.TraceID)

	handler, ok := r.handlers[task]
	if !ok {
		logger.Error().Str("task", task).Str("queue", delivery.Queue).Msg("No handler registered, discarding")
		r.ack(ctx, delivery)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, r.config.WorkerHardTimeout())
	defer cancel()

	started := time.Now()
	err := handler(hctx, delivery)
	elapsed := time.Since(started)

	switch {
	case err == nil:
		logger.Info().Str("task", task).Dur("elapsed", elapsed).Msg("Task completed")
		r.ack(ctx, delivery)
	case executor.IsPermanent(err):
		logger.Error().Err(err).Str("task", task).Dur("elapsed", elapsed).Msg("Task failed permanently")
		r.ack(ctx, delivery)
	default:
		logger.Warn().Err(err).Str("task", task).Dur("elapsed", elapsed).
			Int("delivery_count", delivery.DeliveryCount).
			Msg("Task failed, returning to queue")
		if nackErr := r.broker.Nack(ctx, delivery, err.Error()); nackErr != nil {
			logger.Error().Err(nackErr).Str("task", task).Msg("Nack failed")
		}
	}
}

func (r *Runtime) ack(ctx context.Context, delivery *interfaces.Delivery) {
	if err := r.broker.Ack(ctx, delivery); err != nil {
		r.logger.Error().Err(err).Str("message_id", delivery.MessageID).Msg("Ack failed")
	}
}
