// Package kodi adapts the host's JSON-RPC surface to the domain gateways:
// player queries and commands, GUI inspection, on-screen notifications, and
// the stream of playback lifecycle notifications.
package kodi

import (
	"context"
	"fmt"

	"github.com/mkaindl/offsetpilot/internal/domain"
)

// Caller issues a JSON-RPC request and decodes the result. Satisfied by
// jsonrpc.Client.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Players implements domain.PlayerGateway against the host.
type Players struct {
	rpc Caller
}

func NewPlayers(rpc Caller) *Players {
	return &Players{rpc: rpc}
}

var _ domain.PlayerGateway = (*Players)(nil)

func (p *Players) ActivePlayer(ctx context.Context) (int, error) {
	var players []struct {
		PlayerID int    `json:"playerid"`
		Type     string `json:"type"`
	}
	if err := p.rpc.Call(ctx, "Player.GetActivePlayers", nil, &players); err != nil {
		return domain.NoPlayer, err
	}
	if len(players) == 0 {
		return domain.NoPlayer, domain.ErrNoActivePlayer
	}
	return players[0].PlayerID, nil
}

func (p *Players) CurrentAudioStream(ctx context.Context, playerID int) (string, int, error) {
	params := map[string]any{
		"playerid":   playerID,
		"properties": []string{"currentaudiostream"},
	}
	var result struct {
		CurrentAudioStream struct {
			Codec    string `json:"codec"`
			Channels int    `json:"channels"`
		} `json:"currentaudiostream"`
	}
	if err := p.rpc.Call(ctx, "Player.GetProperties", params, &result); err != nil {
		return "", 0, err
	}

	codec := result.CurrentAudioStream.Codec
	if codec == "" {
		// The host omits the codec while the stream is still opening.
		codec = "none"
	}
	return codec, result.CurrentAudioStream.Channels, nil
}

func (p *Players) SetAudioDelay(ctx context.Context, playerID int, seconds float64) error {
	params := map[string]any{
		"playerid": playerID,
		"offset":   seconds,
	}
	if err := p.rpc.Call(ctx, "Player.SetAudioDelay", params, nil); err != nil {
		return fmt.Errorf("set audio delay: %w", err)
	}
	return nil
}

func (p *Players) SeekBy(ctx context.Context, playerID int, seconds int) error {
	params := map[string]any{
		"playerid": playerID,
		"value":    map[string]any{"seconds": seconds},
	}
	if err := p.rpc.Call(ctx, "Player.Seek", params, nil); err != nil {
		return fmt.Errorf("relative seek: %w", err)
	}
	return nil
}
