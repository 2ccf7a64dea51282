package authsvc

import (
	"context"

	"github.com/mkrupp/inkspira/internal/infra/logging"
)

// ResetNotifier delivers password reset tokens to account holders.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string) error
}

// LogResetNotifier writes reset tokens to the log instead of sending mail.
type LogResetNotifier struct {
	Log logging.Logger
}

func (n LogResetNotifier) NotifyPasswordReset(ctx context.Context, email, token string) error {
	n.Log.InfoContext(ctx, "password reset requested",
		logging.Group("reset", "email", email, "token", token))

	return nil
}
