package worker

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier "displays" notifications by logging them
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) ShowNotification(_ context.Context, n Notification) error {
	l.Logger.Info().
		Str("title", n.Title).
		Str("body", n.Body).
		Str("tag", n.Tag).
		Str("url", n.URL).
		Bool("require_interaction", n.RequireInteraction).
		Msg("notification")
	return nil
}
