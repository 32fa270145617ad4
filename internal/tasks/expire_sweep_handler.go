package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/metrics"
	"go.uber.org/zap"
)

const defaultSweepBatch = 500

// LicenseExpireHandler moves active licenses whose end date has passed to
// expired. It only keeps stored status honest; validity checks never depend
// on it and no customer is contacted.
type LicenseExpireHandler struct {
	repo   customer.Repository
	now    func() time.Time
	logger *zap.Logger
}

func NewLicenseExpireHandler(repo customer.Repository, logger *zap.Logger) *LicenseExpireHandler {
	return &LicenseExpireHandler{
		repo:   repo,
		now:    time.Now,
		logger: logger.Named("LicenseExpireHandler"),
	}
}

func (h *LicenseExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicenseExpireSweep {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p ExpireSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for license expiry sweep", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	_, err := h.Sweep(ctx, p.BatchSize)
	return err
}

// Sweep expires overdue licenses in batches and returns how many it updated.
func (h *LicenseExpireHandler) Sweep(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}

	now := h.now().UTC()
	h.logger.Info("Processing license expiry sweep...", zap.Time("now", now))

	updatedCount := 0
	skipped := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return updatedCount, err
		}

		overdue, err := h.repo.ListExpired(ctx, now, batchSize+len(skipped))
		if err != nil {
			h.logger.Error("Failed to list expired licenses", zap.Error(err))
			return updatedCount, fmt.Errorf("repository error listing expired licenses: %w", err)
		}

		progressed := false
		for _, c := range overdue {
			if _, ok := skipped[c.ID.String()]; ok {
				continue
			}
			progressed = true

			c.License.Status = customer.StatusExpired
			if err := h.repo.Update(ctx, c); err != nil {
				// A concurrent writer won; the next sweep picks it up again.
				if !errors.Is(err, ierr.ErrConflict) {
					h.logger.Error("Failed to expire license",
						zap.String("customer_id", c.ID.String()),
						zap.Error(err),
					)
				}
				skipped[c.ID.String()] = struct{}{}
				continue
			}

			updatedCount++
			metrics.LicensesExpiredTotal.Inc()
			h.logger.Info("License expired",
				zap.String("customer_id", c.ID.String()),
				zap.Timep("end_date", c.License.EndDate),
			)
		}

		if !progressed || len(overdue) < batchSize+len(skipped) {
			break
		}
	}

	h.logger.Info("License expiry sweep finished", zap.Int("updated_to_expired", updatedCount), zap.Int("skipped", len(skipped)))
	return updatedCount, nil
}
