package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"sentinel/internal/models"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TaskProcessEvent = "event:process"
	TaskScheduleTick = "schedule:tick"
)

// scheduleTickPayload carries the tick instant so evaluation is against the
// enqueue time, not the dequeue time.
type scheduleTickPayload struct {
	Now time.Time `json:"now"`
}

// Client enqueues pipeline work.
type Client struct {
	client *asynq.Client
}

// NewClient creates the task queue client.
func NewClient(redisAddr, redisPassword string) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword})}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueEvent queues one standardized event for pipeline processing. The
// pipeline itself never retries; the event insert is deduplicated by UUID so
// a redelivered task is harmless but pointless.
func (c *Client) EnqueueEvent(ctx context.Context, event *models.StandardizedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, asynq.NewTask(TaskProcessEvent, payload),
		asynq.MaxRetry(0), asynq.Timeout(60*time.Second))
	return err
}

// EnqueueScheduleTick queues one schedule evaluation tick.
func (c *Client) EnqueueScheduleTick(ctx context.Context, now time.Time) error {
	payload, err := json.Marshal(scheduleTickPayload{Now: now})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, asynq.NewTask(TaskScheduleTick, payload),
		asynq.MaxRetry(0), asynq.Timeout(5*time.Minute))
	return err
}
