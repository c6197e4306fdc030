package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

const (
	// RenderThumbnailTask is scheduled each time a PDF is stored.
	RenderThumbnailTask = "thumbnail:render"

	maxRetry = 5
)

// NewRenderThumbnailTask serializes job into an asynq task.
func NewRenderThumbnailTask(job model.ThumbnailJob) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(RenderThumbnailTask, data, asynq.MaxRetry(maxRetry)), nil
}

// DecodeRenderThumbnail reads the job back out of a task payload.
func DecodeRenderThumbnail(task *asynq.Task) (model.ThumbnailJob, error) {
	var job model.ThumbnailJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return job, fmt.Errorf("decode payload: %w", err)
	}
	if job.FileID == "" {
		return job, fmt.Errorf("decode payload: missing file_id")
	}
	return job, nil
}

// Client enqueues thumbnail jobs into Redis.
type Client struct {
	client *asynq.Client
}

// NewClient wraps an asynq client.
func NewClient(client *asynq.Client) *Client {
	return &Client{client: client}
}

// Submit enqueues a render task for job.
func (c *Client) Submit(ctx context.Context, job model.ThumbnailJob) error {
	task, err := NewRenderThumbnailTask(job)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue thumbnail task: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
