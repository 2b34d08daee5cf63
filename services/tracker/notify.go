package tracker

import (
	"context"
	"log/slog"
)

type NotifyLevel string

const (
	NotifySuccess NotifyLevel = "success"
	NotifyError   NotifyLevel = "error"
	NotifyInfo    NotifyLevel = "info"
)

// Presenter surfaces ephemeral feedback to the user. The page session
// implements it by pushing banner messages back to the browser
// companion, headless runs fall back to SlogPresenter.
type Presenter interface {
	Notify(ctx context.Context, level NotifyLevel, message string)
}

type SlogPresenter struct{}

func (SlogPresenter) Notify(ctx context.Context, level NotifyLevel, message string) {
	switch level {
	case NotifyError:
		slog.WarnContext(ctx, "notification", "level", level, "message", message)
	default:
		slog.InfoContext(ctx, "notification", "level", level, "message", message)
	}
}
