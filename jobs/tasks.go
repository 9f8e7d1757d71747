package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueMail is the queue for transactional auth emails.
	QueueMail = "mail"
	// TaskTypeConfirmationEmail delivers a registration confirmation token.
	TaskTypeConfirmationEmail = "mail:confirmation"
	// TaskTypePasswordResetEmail delivers a password reset token.
	TaskTypePasswordResetEmail = "mail:password_reset"
)

// MailPayload carries a flow-token email through the queue. MessageID
// makes redeliveries traceable in the worker logs.
type MailPayload struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Token     string `json:"token"`
}

// NewConfirmationEmailTask constructs a registration confirmation task.
func NewConfirmationEmailTask(to, token string) (*asynq.Task, error) {
	return newMailTask(TaskTypeConfirmationEmail, to, token)
}

// NewPasswordResetEmailTask constructs a password reset task.
func NewPasswordResetEmailTask(to, token string) (*asynq.Task, error) {
	return newMailTask(TaskTypePasswordResetEmail, to, token)
}

func newMailTask(taskType, to, token string) (*asynq.Task, error) {
	data, err := json.Marshal(MailPayload{
		MessageID: uuid.NewString(),
		To:        to,
		Token:     token,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.Queue(QueueMail)), nil
}

// MailSender delivers a single email. The worker wires an SMTP-backed
// implementation; tests substitute a recorder.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailHandler processes queued auth emails.
type MailHandler struct {
	sender  MailSender
	logger  *slog.Logger
	metrics *Metrics
}

// NewMailHandler constructs a MailHandler. Metrics may be nil when
// instrumentation is not wanted, as in tests.
func NewMailHandler(sender MailSender, logger *slog.Logger, metrics *Metrics) *MailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailHandler{sender: sender, logger: logger, metrics: metrics}
}

// HandleConfirmation processes TaskTypeConfirmationEmail tasks.
func (h *MailHandler) HandleConfirmation(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskTypeConfirmationEmail)
	return tracker.End(h.deliver(ctx, t, "Confirm your registration",
		"Use this token to confirm your registration: %s"))
}

// HandlePasswordReset processes TaskTypePasswordResetEmail tasks.
func (h *MailHandler) HandlePasswordReset(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskTypePasswordResetEmail)
	return tracker.End(h.deliver(ctx, t, "Reset your password",
		"Use this token to reset your password: %s"))
}

func (h *MailHandler) deliver(ctx context.Context, t *asynq.Task, subject, bodyFormat string) error {
	var payload MailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := h.sender.Send(ctx, payload.To, subject, fmt.Sprintf(bodyFormat, payload.Token)); err != nil {
		h.logger.Warn("mail delivery failed",
			slog.String("message_id", payload.MessageID),
			slog.String("to", payload.To),
			slog.Any("error", err))
		return err
	}
	h.logger.Info("mail delivered",
		slog.String("message_id", payload.MessageID),
		slog.String("to", payload.To))
	return nil
}
