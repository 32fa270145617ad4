package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes notifications to the log instead of delivering them. Used
// when SMTP is not configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("LogSink")}
}

func (s *LogSink) Send(ctx context.Context, n Notification) error {
	s.logger.Info("Notification not delivered, SMTP disabled",
		zap.String("kind", string(n.Kind)),
		zap.String("to", n.To),
		zap.String("business_name", n.BusinessName),
	)
	return nil
}
