package kodi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mkaindl/offsetpilot/internal/jsonrpc"
	"github.com/mkaindl/offsetpilot/internal/platform/correlation"
)

// Lifecycle is the slice of the event bus the adapter feeds. One method is
// called per host notification.
type Lifecycle interface {
	OnAVStarted(ctx context.Context)
	OnAVChange(ctx context.Context)
	OnStopped(ctx context.Context)
	OnEnded(ctx context.Context)
	OnPaused(ctx context.Context)
	OnResumed(ctx context.Context)
	OnSeek(ctx context.Context, seconds, offset int)
	OnSpeedChanged(ctx context.Context, speed int)
}

// kodiTime is the host's time object as carried in seek notifications.
type kodiTime struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	Milliseconds int `json:"milliseconds"`
}

func (t kodiTime) toSeconds() int {
	return t.Hours*3600 + t.Minutes*60 + t.Seconds
}

// notificationParams covers the payload fields of every routed notification.
type notificationParams struct {
	Data struct {
		End    bool `json:"end"`
		Player struct {
			PlayerID   int      `json:"playerid"`
			Speed      int      `json:"speed"`
			Time       kodiTime `json:"time"`
			SeekOffset kodiTime `json:"seekoffset"`
		} `json:"player"`
	} `json:"data"`
}

// EventAdapter consumes the host's notification stream and translates each
// playback notification into the matching lifecycle call. Each notification
// gets its own correlation id so everything it causes shares one trail in
// the logs.
type EventAdapter struct {
	notifications <-chan jsonrpc.Notification
	lifecycle     Lifecycle

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEventAdapter(notifications <-chan jsonrpc.Notification, lifecycle Lifecycle) *EventAdapter {
	return &EventAdapter{
		notifications: notifications,
		lifecycle:     lifecycle,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the routing loop. The loop exits when the notification
// channel closes or Stop is called.
func (a *EventAdapter) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop halts routing and waits for the loop to exit. Notifications already
// handed to the lifecycle complete normally.
func (a *EventAdapter) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

func (a *EventAdapter) run() {
	defer a.wg.Done()
	for {
		select {
		case n, ok := <-a.notifications:
			if !ok {
				slog.Info("Host notification stream closed")
				return
			}
			a.dispatch(n)
		case <-a.stopCh:
			return
		}
	}
}

func (a *EventAdapter) dispatch(n jsonrpc.Notification) {
	ctx := correlation.WithID(context.Background(), correlation.NewID())

	var params notificationParams
	if len(n.Params) > 0 {
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.WarnContext(ctx, "Unparseable notification payload", "method", n.Method, "error", err)
			return
		}
	}

	switch n.Method {
	case "Player.OnAVStart":
		a.lifecycle.OnAVStarted(ctx)
	case "Player.OnAVChange":
		a.lifecycle.OnAVChange(ctx)
	case "Player.OnPause":
		a.lifecycle.OnPaused(ctx)
	case "Player.OnResume":
		a.lifecycle.OnResumed(ctx)
	case "Player.OnSeek":
		a.lifecycle.OnSeek(ctx, params.Data.Player.Time.toSeconds(), params.Data.Player.SeekOffset.toSeconds())
	case "Player.OnSpeedChanged":
		a.lifecycle.OnSpeedChanged(ctx, params.Data.Player.Speed)
	case "Player.OnStop":
		// The host distinguishes natural end of stream from a user stop.
		if params.Data.End {
			a.lifecycle.OnEnded(ctx)
		} else {
			a.lifecycle.OnStopped(ctx)
		}
	default:
		slog.DebugContext(ctx, "Ignoring host notification", "method", n.Method)
	}
}
