package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
	"go.uber.org/zap"
)

// EmailHandler delivers queued notifications through the configured
// transport (SMTP, or the log sink when SMTP is disabled).
type EmailHandler struct {
	transport notify.Sink
	logger    *zap.Logger
}

func NewEmailHandler(transport notify.Sink, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		transport: transport,
		logger:    logger.Named("EmailHandler"),
	}
}

func (h *EmailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	n, err := notify.DecodeEmailTask(t)
	if err != nil {
		h.logger.Error("Dropping malformed email task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := h.transport.Send(ctx, n); err != nil {
		return fmt.Errorf("deliver %s notification: %w", n.Kind, err)
	}
	return nil
}
