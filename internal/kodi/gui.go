package kodi

import (
	"context"
	"fmt"

	"github.com/mkaindl/offsetpilot/internal/domain"
)

// GUI implements domain.GUIGateway against the host.
type GUI struct {
	rpc Caller
}

func NewGUI(rpc Caller) *GUI {
	return &GUI{rpc: rpc}
}

var _ domain.GUIGateway = (*GUI)(nil)

func (g *GUI) InfoLabel(ctx context.Context, label string) (string, error) {
	params := map[string]any{"labels": []string{label}}
	var result map[string]string
	if err := g.rpc.Call(ctx, "XBMC.GetInfoLabels", params, &result); err != nil {
		return "", fmt.Errorf("info label %s: %w", label, err)
	}
	return result[label], nil
}

func (g *GUI) CurrentDialogID(ctx context.Context) (int, error) {
	params := map[string]any{"properties": []string{"currentwindow"}}
	var result struct {
		CurrentWindow struct {
			ID int `json:"id"`
		} `json:"currentwindow"`
	}
	if err := g.rpc.Call(ctx, "GUI.GetProperties", params, &result); err != nil {
		return 0, fmt.Errorf("current window: %w", err)
	}
	return result.CurrentWindow.ID, nil
}
