package notifier

import (
	"context"
	"log/slog"
)

// ErrorReporter forwards run failures to a separate webhook. Without one it only logs.
type ErrorReporter struct {
	webhook *Webhook
}

func NewErrorReporter(webhook *Webhook) *ErrorReporter {
	return &ErrorReporter{webhook: webhook}
}

func (r *ErrorReporter) Report(ctx context.Context, message string) {
	if r == nil || r.webhook == nil {
		slog.Warn("Error webhook not configured, failure not forwarded", "message", message)
		return
	}

	result := r.webhook.Send(ctx, errorContent(message))
	if !result.Delivered {
		slog.Warn("Failed to forward error to webhook", "status", result.Status, "error", result.Err)
	}
}
