package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(t *testing.T) (*Mailer, *[]sentMail) {
	t.Helper()
	m, err := NewMailer(config.SMTPConfig{
		Host:         "smtp.example.com",
		Port:         587,
		Username:     "noreply@ledgerpro.test",
		From:         "noreply@ledgerpro.test",
		SalesAddress: "sales@ledgerpro.test",
	}, zap.NewNop())
	require.NoError(t, err)

	var sent []sentMail
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return m, &sent
}

func TestValidateSMTPConfig(t *testing.T) {
	assert.EqualError(t, ValidateSMTPConfig(config.SMTPConfig{Port: 587, From: "a@b.c"}), "smtp host is required")
	assert.EqualError(t, ValidateSMTPConfig(config.SMTPConfig{Host: "h", From: "a@b.c"}), "smtp port is required")
	assert.EqualError(t, ValidateSMTPConfig(config.SMTPConfig{Host: "h", Port: 25}), "smtp from address is required")
	assert.NoError(t, ValidateSMTPConfig(config.SMTPConfig{Host: "h", Port: 25, Username: "u@b.c"}))
}

func TestMailerLicenseKeyEmail(t *testing.T) {
	m, sent := newTestMailer(t)
	expiry := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	err := m.Send(context.Background(), Notification{
		Kind:         KindLicenseKey,
		To:           "owner@acme.test",
		BusinessName: "Acme & Sons",
		LicenseKey:   "ABCD-1234-EF56-7890",
		LicenseType:  "professional",
		ExpiryDate:   &expiry,
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, []string{"owner@acme.test"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: LedgerPro - Your License Key\r\n")
	assert.Contains(t, mail.msg, "ABCD-1234-EF56-7890")
	assert.Contains(t, mail.msg, "02 Mar 2026")
	assert.Contains(t, mail.msg, "Acme &amp; Sons", "business name must be HTML escaped")
}

func TestMailerEnterpriseGoesToSales(t *testing.T) {
	m, sent := newTestMailer(t)

	err := m.Send(context.Background(), Notification{
		Kind:          KindEnterpriseSales,
		BusinessName:  "BigCo",
		CustomerEmail: "cto@bigco.test",
		Phone:         "+911234567890",
		BusinessNeeds: "Multi-branch inventory",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Equal(t, []string{"sales@ledgerpro.test"}, (*sent)[0].to)
	assert.Contains(t, (*sent)[0].msg, "cto@bigco.test")
	assert.Contains(t, (*sent)[0].msg, "Multi-branch inventory")
}

func TestMailerErrors(t *testing.T) {
	m, _ := newTestMailer(t)

	err := m.Send(context.Background(), Notification{Kind: KindWelcome, BusinessName: "x"})
	assert.Error(t, err, "missing recipient")

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	err = m.Send(context.Background(), Notification{Kind: KindWelcome, To: "a@b.c"})
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Notification{Kind: KindWelcome, To: "a@b.c"}), context.Canceled)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestAsynqSinkRoundTrip(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewAsynqSink(q, zap.NewNop())

	n := Notification{Kind: KindPaymentFailed, To: "a@b.c", BusinessName: "Acme", Reason: "card declined"}
	require.NoError(t, sink.Send(context.Background(), n))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeEmailSend, q.tasks[0].Type())

	decoded, err := DecodeEmailTask(q.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}

func TestAsynqSinkFailures(t *testing.T) {
	sink := NewAsynqSink(&fakeEnqueuer{err: errors.New("redis down")}, zap.NewNop())
	assert.ErrorContains(t, sink.Send(context.Background(), Notification{Kind: KindWelcome, To: "a@b.c"}), "redis down")

	_, err := NewEmailTask(Notification{Kind: "sms"})
	assert.Error(t, err)

	_, err = DecodeEmailTask(asynq.NewTask("other", nil))
	assert.Error(t, err)
}
