package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/metrics"
	"go.uber.org/zap"
)

const TypeEmailSend = "email:send"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqSink queues notifications for the worker. Send returns once the task
// is stored in redis; SMTP latency never reaches the request path.
type AsynqSink struct {
	client Enqueuer
	logger *zap.Logger
}

func NewAsynqSink(client Enqueuer, logger *zap.Logger) *AsynqSink {
	return &AsynqSink{
		client: client,
		logger: logger.Named("AsynqSink"),
	}
}

func (s *AsynqSink) Send(ctx context.Context, n Notification) error {
	task, err := NewEmailTask(n)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		s.logger.Error("Failed to enqueue notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		return fmt.Errorf("enqueue %s notification: %w", n.Kind, err)
	}

	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "queued").Inc()
	s.logger.Debug("Notification queued", zap.String("kind", string(n.Kind)), zap.String("task_id", info.ID))
	return nil
}

func NewEmailTask(n Notification, opts ...asynq.Option) (*asynq.Task, error) {
	if !n.Kind.Valid() {
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	defaults := []asynq.Option{
		asynq.Queue("default"),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	return asynq.NewTask(TypeEmailSend, payload, append(defaults, opts...)...), nil
}

// DecodeEmailTask is the inverse of NewEmailTask.
func DecodeEmailTask(t *asynq.Task) (Notification, error) {
	var n Notification
	if t.Type() != TypeEmailSend {
		return n, fmt.Errorf("unexpected task type: %s", t.Type())
	}
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return n, fmt.Errorf("invalid payload: %w", err)
	}
	if !n.Kind.Valid() {
		return n, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return n, nil
}
