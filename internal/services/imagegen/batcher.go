package imagegen

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/services"
)

// subTaskPriority outranks ordinary job submissions so scene sub-tasks are
// not starved by the jobs queued behind their parent.
const subTaskPriority = 8

// deadLetterScan bounds how many dead letters one poll inspects.
const deadLetterScan = 200

// SingleGenerator is the part of the image service a scene sub-task needs.
type SingleGenerator interface {
	GenerateSingle(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error)
}

// BrokerBatcher fans a batch out through the task queue, one
// generate_single_image_task per scene, so every scene carries its own retry
// envelope and a failure only dead-letters that scene. Completion is observed
// through the requested output paths; results keep request order.
type BrokerBatcher struct {
	inner        SingleGenerator
	broker       interfaces.Broker
	pollInterval time.Duration
	logger       arbor.ILogger
}

func NewBrokerBatcher(logger arbor.ILogger, queueBroker interfaces.Broker, inner SingleGenerator, pollInterval time.Duration) *BrokerBatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &BrokerBatcher{
		inner:        inner,
		broker:       queueBroker,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (b *BrokerBatcher) GenerateSingle(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error) {
	return b.inner.GenerateSingle(ctx, req)
}

// GenerateBatch enqueues one sub-task per request and waits for every scene
// to either produce its file or exhaust its retries.
func (b *BrokerBatcher) GenerateBatch(ctx context.Context, reqs []interfaces.ImageRequest, jobID string) ([]*interfaces.ImageResult, error) {
	started := time.Now()

	for i, req := range reqs {
		kwargs := map[string]any{
			"job_id":      jobID,
			"split_index": i,
			"prompt":      req.Prompt,
			"output_path": req.OutputPath,
			"width":       req.Width,
			"height":      req.Height,
		}
		if req.Steps > 0 {
			kwargs["steps"] = req.Steps
		}
		if req.StyleName != "" {
			kwargs["style_name"] = req.StyleName
			kwargs["style_weight"] = req.StyleWeight
		}
		payload := interfaces.TaskPayload{
			TaskName: interfaces.TaskGenerateSingleImage,
			Kwargs:   kwargs,
		}
		if err := b.broker.Enqueue(ctx, interfaces.QueueVideoProcessing, payload, subTaskPriority, 0); err != nil {
			return nil, services.Transient("image", fmt.Errorf("failed to enqueue scene %d: %w", i, err))
		}
	}

	b.logger.Info().
		Str("job_id", jobID).
		Int("scenes", len(reqs)).
		Msg("Image batch fanned out")

	results := make([]*interfaces.ImageResult, len(reqs))
	pending := len(reqs)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		for i, req := range reqs {
			if results[i] != nil {
				continue
			}
			if _, err := os.Stat(req.OutputPath); err == nil {
				results[i] = &interfaces.ImageResult{Status: "success", OutputPath: req.OutputPath}
				pending--
			}
		}
		if pending > 0 {
			dead, err := b.deadScenes(ctx, jobID, started)
			if err != nil {
				b.logger.Warn().Err(err).Str("job_id", jobID).Msg("Dead letter scan failed")
			}
			for index, reason := range dead {
				if index >= 0 && index < len(results) && results[index] == nil {
					results[index] = &interfaces.ImageResult{Status: "failed", Error: reason}
					pending--
				}
			}
		}
		if pending == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, services.Transient("image", fmt.Errorf("image batch for job %s: %w", jobID, ctx.Err()))
		case <-ticker.C:
		}
	}

	failed := 0
	for _, r := range results {
		if r.Status != "success" {
			failed++
		}
	}
	b.logger.Info().
		Str("job_id", jobID).
		Int("total", len(reqs)).
		Int("failed", failed).
		Dur("elapsed", time.Since(started)).
		Msg("Image batch completed")

	return results, nil
}

// deadScenes lists this job's sub-tasks that exhausted their retries since
// the batch started, keyed by split index.
func (b *BrokerBatcher) deadScenes(ctx context.Context, jobID string, since time.Time) (map[int]string, error) {
	letters, err := b.broker.DeadLetters(ctx, interfaces.QueueVideoProcessing, deadLetterScan)
	if err != nil {
		return nil, err
	}

	dead := make(map[int]string)
	for _, letter := range letters {
		if letter.Payload.TaskName != interfaces.TaskGenerateSingleImage || letter.DeadAt.Before(since) {
			continue
		}
		if id, _ := letter.Payload.Kwargs["job_id"].(string); id != jobID {
			continue
		}
		index, ok := kwargInt(letter.Payload.Kwargs["split_index"])
		if !ok {
			continue
		}
		dead[index] = letter.LastError
	}
	return dead, nil
}

// kwargInt reads an integer kwarg, tolerating the float64 typing the JSON
// round-trip through the queue produces.
func kwargInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
