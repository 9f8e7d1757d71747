// Package mail implements the notification sink for auth flows.
package mail

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/jobs"
)

var _ auth.Notifier = (*AsynqNotifier)(nil)

// AsynqNotifier queues flow-token emails for the background worker.
// Delivery is best effort; enqueue errors are reported to the caller,
// which logs them without failing the flow.
type AsynqNotifier struct {
	client *asynq.Client
}

// NewAsynqNotifier constructs a notifier on top of an Asynq client.
func NewAsynqNotifier(client *asynq.Client) *AsynqNotifier {
	return &AsynqNotifier{client: client}
}

// SendConfirmation queues a registration confirmation email.
func (n *AsynqNotifier) SendConfirmation(ctx context.Context, email, token string) error {
	task, err := jobs.NewConfirmationEmailTask(email, token)
	if err != nil {
		return fmt.Errorf("mail: build confirmation task: %w", err)
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("mail: enqueue confirmation: %w", err)
	}
	return nil
}

// SendPasswordReset queues a password reset email.
func (n *AsynqNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	task, err := jobs.NewPasswordResetEmailTask(email, token)
	if err != nil {
		return fmt.Errorf("mail: build password reset task: %w", err)
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("mail: enqueue password reset: %w", err)
	}
	return nil
}
