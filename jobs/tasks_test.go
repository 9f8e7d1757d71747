package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	_ "github.com/castellan/castellan/testing"
)

type recordedMail struct {
	to      string
	subject string
	body    string
}

type stubSender struct {
	sent []recordedMail
	err  error
}

func (s *stubSender) Send(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, recordedMail{to: to, subject: subject, body: body})
	return nil
}

func TestNewConfirmationEmailTask(t *testing.T) {
	task, err := NewConfirmationEmailTask("a@x.com", "tok123")
	require.NoError(t, err)
	require.Equal(t, TaskTypeConfirmationEmail, task.Type())

	var payload MailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "a@x.com", payload.To)
	require.Equal(t, "tok123", payload.Token)
	require.NotEmpty(t, payload.MessageID)

	other, err := NewConfirmationEmailTask("a@x.com", "tok123")
	require.NoError(t, err)
	var otherPayload MailPayload
	require.NoError(t, json.Unmarshal(other.Payload(), &otherPayload))
	require.NotEqual(t, payload.MessageID, otherPayload.MessageID)
}

func TestMailHandlerDelivers(t *testing.T) {
	sender := &stubSender{}
	handler := NewMailHandler(sender, nil, nil)

	task, err := NewConfirmationEmailTask("a@x.com", "tok123")
	require.NoError(t, err)
	require.NoError(t, handler.HandleConfirmation(context.Background(), task))

	require.Len(t, sender.sent, 1)
	require.Equal(t, "a@x.com", sender.sent[0].to)
	require.Contains(t, sender.sent[0].subject, "Confirm")
	require.Contains(t, sender.sent[0].body, "tok123")

	reset, err := NewPasswordResetEmailTask("a@x.com", "tok456")
	require.NoError(t, err)
	require.NoError(t, handler.HandlePasswordReset(context.Background(), reset))

	require.Len(t, sender.sent, 2)
	require.Contains(t, sender.sent[1].subject, "Reset")
	require.Contains(t, sender.sent[1].body, "tok456")
}

func TestMailHandlerSkipsMalformedPayload(t *testing.T) {
	handler := NewMailHandler(&stubSender{}, nil, nil)

	task := asynq.NewTask(TaskTypeConfirmationEmail, []byte("not json"))
	err := handler.HandleConfirmation(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailHandlerPropagatesSendFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp down")}
	handler := NewMailHandler(sender, nil, nil)

	task, err := NewConfirmationEmailTask("a@x.com", "tok123")
	require.NoError(t, err)
	require.Error(t, handler.HandleConfirmation(context.Background(), task))
}

func TestMailHandlerRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	sender := &stubSender{}
	handler := NewMailHandler(sender, nil, metrics)

	task, err := NewConfirmationEmailTask("a@x.com", "tok123")
	require.NoError(t, err)
	require.NoError(t, handler.HandleConfirmation(context.Background(), task))

	runs := testutil.ToFloat64(metrics.runs.WithLabelValues(TaskTypeConfirmationEmail, "success"))
	require.Equal(t, float64(1), runs)

	failing := NewMailHandler(&stubSender{err: errors.New("smtp down")}, nil, metrics)
	require.Error(t, failing.HandleConfirmation(context.Background(), task))

	failures := testutil.ToFloat64(metrics.failures.WithLabelValues(TaskTypeConfirmationEmail))
	require.Equal(t, float64(1), failures)
}
