package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"sentinel/internal/automation"
	"sentinel/internal/models"
	"sentinel/internal/pipeline"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker runs the asynq server that drives the event pipeline and the
// schedule ticks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	publisher *pipeline.Publisher
	schedules *automation.ScheduleEvaluator
	logger    *zap.Logger
}

// NewWorker creates the worker.
func NewWorker(redisAddr, redisPassword string, concurrency int,
	publisher *pipeline.Publisher, schedules *automation.ScheduleEvaluator, logger *zap.Logger) *Worker {
	w := &Worker{
		server: asynq.NewServer(
			asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword},
			asynq.Config{Concurrency: concurrency},
		),
		mux:       asynq.NewServeMux(),
		publisher: publisher,
		schedules: schedules,
		logger:    logger.Named("taskqueue"),
	}
	w.mux.HandleFunc(TaskProcessEvent, w.handleProcessEvent)
	w.mux.HandleFunc(TaskScheduleTick, w.handleScheduleTick)
	return w
}

// Run blocks until Shutdown.
func (w *Worker) Run() error {
	w.logger.Info("worker starting")
	return w.server.Run(w.mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}

func (w *Worker) handleProcessEvent(ctx context.Context, t *asynq.Task) error {
	var event models.StandardizedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		w.logger.Error("event task payload unreadable", zap.Error(err))
		return nil
	}
	if err := w.publisher.Process(ctx, &event); err != nil {
		// Ingestion failure: the event row was not written. Logged here,
		// not retried; the source already received its opaque accept.
		w.logger.Error("event processing failed",
			zap.String("event_uuid", event.EventUUID),
			zap.Error(err))
	}
	return nil
}

func (w *Worker) handleScheduleTick(ctx context.Context, t *asynq.Task) error {
	var payload scheduleTickPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("tick task payload unreadable", zap.Error(err))
		return nil
	}
	if payload.Now.IsZero() {
		payload.Now = time.Now()
	}
	w.schedules.Tick(ctx, payload.Now)
	return nil
}
