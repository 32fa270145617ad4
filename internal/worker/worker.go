package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
	"github.com/makkenzo/ledgerpro-license-api/internal/tasks"
	"go.uber.org/zap"
)

func RedisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewMux routes every background task type to its handler.
func NewMux(repo customer.Repository, transport notify.Sink, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	expireHandler := tasks.NewLicenseExpireHandler(repo, logger)
	mux.HandleFunc(tasks.TypeLicenseExpireSweep, expireHandler.ProcessTask)

	emailHandler := tasks.NewEmailHandler(transport, logger)
	mux.HandleFunc(tasks.TypeEmailSend, emailHandler.ProcessTask)

	return mux
}

// RunWorkers starts the asynq server and the periodic scheduler. transport
// is what queued email tasks are finally delivered through.
func RunWorkers(cfg *config.Config, repo customer.Repository, transport notify.Sink, logger *zap.Logger) (<-chan error, func(context.Context)) {
	errChan := make(chan error, 3)

	redisConnOpts := RedisClientOpt(&cfg.Redis)

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := NewMux(repo, transport, logger)

	logger.Info("Starting Asynq Server...")
	if err := srv.Start(mux); err != nil {
		logger.Error("Asynq Server start failed", zap.Error(err))
		errChan <- fmt.Errorf("asynq server error: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	sweepTask, err := tasks.NewLicenseExpireSweepTask()
	if err != nil {
		logger.Error("Failed to create license expiry sweep task for scheduler", zap.Error(err))
		errChan <- fmt.Errorf("scheduler task creation error: %w", err)
	} else {
		entryID, err := scheduler.Register(tasks.ExpireSweepSchedule, sweepTask)
		if err != nil {
			logger.Error("Could not register periodic license expiry sweep", zap.Error(err))
			errChan <- fmt.Errorf("scheduler registration error: %w", err)
		} else {
			logger.Info("Registered periodic license expiry sweep", zap.String("entry_id", entryID), zap.String("schedule", tasks.ExpireSweepSchedule))
		}
	}

	logger.Info("Starting Asynq Scheduler...")
	if err := scheduler.Start(); err != nil {
		logger.Error("Asynq Scheduler start failed", zap.Error(err))
		errChan <- fmt.Errorf("asynq scheduler error: %w", err)
	}

	shutdownFunc := func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			logger.Info("Shutting down Asynq Scheduler...")
			scheduler.Shutdown()
			logger.Info("Shutting down Asynq Server...")
			srv.Shutdown()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Asynq workers stopped.")
		case <-ctx.Done():
			logger.Warn("Asynq shutdown did not finish before deadline", zap.Error(ctx.Err()))
		}
	}

	return errChan, shutdownFunc
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

var _ asynq.Logger = (*asynqLoggerAdapter)(nil)

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...any) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...any) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...any) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...any) {
	l.logger.Fatal(fmt.Sprint(args...))
}
