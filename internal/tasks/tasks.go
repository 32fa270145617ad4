package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
)

const (
	TypeLicenseExpireSweep = "license:expire:sweep"
	TypeEmailSend          = notify.TypeEmailSend

	ExpireSweepSchedule = "@every 1h"
)

type ExpireSweepPayload struct {
	BatchSize int `json:"batchSize,omitempty"`
}

func NewLicenseExpireSweepTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(ExpireSweepPayload{})
	if err != nil {
		return nil, err
	}

	allOpts := append([]asynq.Option{asynq.Unique(1 * time.Hour), asynq.Queue("low")}, opts...)
	return asynq.NewTask(TypeLicenseExpireSweep, payloadBytes, allOpts...), nil
}
