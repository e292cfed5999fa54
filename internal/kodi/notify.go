package kodi

import (
	"context"
	"fmt"

	"github.com/mkaindl/offsetpilot/internal/domain"
)

// Notifier implements domain.NotificationSink by popping an on-screen toast.
type Notifier struct {
	rpc Caller
}

func NewNotifier(rpc Caller) *Notifier {
	return &Notifier{rpc: rpc}
}

var _ domain.NotificationSink = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, title, message string, displayMillis int) error {
	params := map[string]any{
		"title":       title,
		"message":     message,
		"displaytime": displayMillis,
	}
	if err := n.rpc.Call(ctx, "GUI.ShowNotification", params, nil); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}
