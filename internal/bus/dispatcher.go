package bus

import (
	"context"
	"log/slog"

	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/metrics"
)

// The On* methods are the host-facing side of the bus: the lifecycle adapter
// calls exactly one of them per host callback. They update the playback state
// and publish the corresponding event.

// OnAVStarted records the stream start time and publishes AV_STARTED.
func (b *Bus) OnAVStarted(ctx context.Context) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	slog.DebugContext(ctx, "AV started")
	b.state.avStarted = true
	b.state.startedAt = b.clock.Now()
	b.publishLocked(ctx, domain.Event{Type: domain.EventAVStarted})
}

// OnAVChange evaluates the suppression rules and publishes ON_AV_CHANGE only
// for signals that look like a genuine format change.
func (b *Bus) OnAVChange(ctx context.Context) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	if reason, drop := b.shouldSuppressChangeLocked(); drop {
		metrics.EventsSuppressed.WithLabelValues(reason).Inc()
		slog.DebugContext(ctx, "AV change suppressed", "reason", reason)
		return
	}

	b.state.lastChangeAt = b.clock.Now()
	slog.DebugContext(ctx, "AV stream changed")
	b.publishLocked(ctx, domain.Event{Type: domain.EventAVChange})
}

// shouldSuppressChangeLocked applies the debounce rules in order: playback
// must be active, the stream must have settled after start, the previous
// accepted change must be old enough, and a pending suppress-next flag eats
// exactly one signal.
func (b *Bus) shouldSuppressChangeLocked() (string, bool) {
	if !b.state.avStarted {
		return "inactive", true
	}

	now := b.clock.Now()
	if now.Sub(b.state.startedAt) < startSettleWindow {
		return "start_window", true
	}
	if !b.state.lastChangeAt.IsZero() && now.Sub(b.state.lastChangeAt) < changeDebounceWindow {
		return "change_window", true
	}
	if b.state.suppressNext {
		b.state.suppressNext = false
		return "suppress_flag", true
	}
	return "", false
}

// OnStopped clears the stream lifecycle state and publishes PLAYBACK_STOPPED.
func (b *Bus) OnStopped(ctx context.Context) {
	b.endPlayback(ctx, domain.EventPlaybackStopped)
}

// OnEnded clears the stream lifecycle state and publishes PLAYBACK_ENDED.
func (b *Bus) OnEnded(ctx context.Context) {
	b.endPlayback(ctx, domain.EventPlaybackEnded)
}

func (b *Bus) endPlayback(ctx context.Context, t domain.EventType) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	slog.DebugContext(ctx, "Playback finished", "event", t)
	b.state = playbackState{}
	b.publishLocked(ctx, domain.Event{Type: t})
}

// OnPaused publishes PLAYBACK_PAUSED.
func (b *Bus) OnPaused(ctx context.Context) {
	b.Publish(ctx, domain.Event{Type: domain.EventPlaybackPaused})
}

// OnResumed publishes PLAYBACK_RESUMED.
func (b *Bus) OnResumed(ctx context.Context) {
	b.Publish(ctx, domain.Event{Type: domain.EventPlaybackResumed})
}

// OnSeek publishes PLAYBACK_SEEK and arms the suppress-next-change flag.
func (b *Bus) OnSeek(ctx context.Context, seconds, offset int) {
	slog.DebugContext(ctx, "Playback seek", "seconds", seconds, "offset", offset)
	b.Publish(ctx, domain.Event{Type: domain.EventSeek, SeekSeconds: seconds, SeekOffsetSec: offset})
}

// OnSeekChapter publishes PLAYBACK_SEEK_CHAPTER and arms the
// suppress-next-change flag.
func (b *Bus) OnSeekChapter(ctx context.Context, chapter int) {
	slog.DebugContext(ctx, "Playback seek to chapter", "chapter", chapter)
	b.Publish(ctx, domain.Event{Type: domain.EventSeekChapter, Chapter: chapter})
}

// OnSpeedChanged publishes PLAYBACK_SPEED_CHANGED and arms the
// suppress-next-change flag.
func (b *Bus) OnSpeedChanged(ctx context.Context, speed int) {
	slog.DebugContext(ctx, "Playback speed changed", "speed", speed)
	b.Publish(ctx, domain.Event{Type: domain.EventSpeedChanged, Speed: speed})
}
