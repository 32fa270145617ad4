package worker

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/memstorage"
	"github.com/makkenzo/ledgerpro-license-api/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct{ n int }

func (c *countingSink) Send(context.Context, notify.Notification) error {
	c.n++
	return nil
}

func TestNewMuxRoutesTasks(t *testing.T) {
	sink := &countingSink{}
	mux := NewMux(memstorage.NewCustomerRepository(), sink, zap.NewNop())

	sweep, err := tasks.NewLicenseExpireSweepTask()
	require.NoError(t, err)
	assert.NoError(t, mux.ProcessTask(context.Background(), sweep))

	email, err := notify.NewEmailTask(notify.Notification{Kind: notify.KindWelcome, To: "a@b.c"})
	require.NoError(t, err)
	assert.NoError(t, mux.ProcessTask(context.Background(), email))
	assert.Equal(t, 1, sink.n)

	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil)))
}

func TestRedisClientOpt(t *testing.T) {
	opt := RedisClientOpt(&config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestAsynqLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewAsynqLoggerAdapter(zap.New(core))

	adapter.Info("scheduler ", "started")
	adapter.Warn("lease ", 3, " expired")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "scheduler started", entries[0].Message)
	assert.Equal(t, "lease 3 expired", entries[1].Message)
}
