// Package seekback replays a short stretch of playback after events that can
// desynchronise the viewer: playback starting, the AV stream changing, the
// user unpausing, or a manual offset adjustment. Each trigger class is gated
// by its own settings pair.
package seekback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/metrics"
)

// Trigger classes. The class names double as settings key fragments.
const (
	ClassResume  = "resume"
	ClassAdjust  = "adjust"
	ClassUnpause = "unpause"
	ClassChange  = "change"
)

const (
	// The host needs a moment after an AV event before a relative seek lands
	// reliably, so every seek waits out a settle window first.
	settleDelay = 2 * time.Second

	// Extra grace after unpause before the paused gate lifts.
	unpauseDelay = 500 * time.Millisecond

	// Triggers arriving within the cooldown of a successful seek are dropped,
	// since the first seek already rewound past them.
	seekCooldown = 2 * time.Second

	// The host accepts relative seeks on the video player only.
	seekPlayerID = 1
)

// Policy decides when a seek-back runs and issues it after the settle window.
type Policy struct {
	players  domain.PlayerGateway
	settings domain.SettingsStore
	clock    clockwork.Clock

	mu         sync.Mutex
	paused     bool
	lastSeekAt time.Time
	pending    bool
	gen        int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPolicy(players domain.PlayerGateway, settings domain.SettingsStore, clock clockwork.Clock) *Policy {
	return &Policy{
		players:  players,
		settings: settings,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// Handle routes a bus event to the matching trigger class.
func (p *Policy) Handle(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventAVStarted:
		p.onStarted(ctx)
	case domain.EventAVChange:
		p.trigger(ctx, ClassAdjust)
	case domain.EventPlaybackPaused:
		p.onPaused(ctx)
	case domain.EventPlaybackResumed:
		p.onResumed(ctx)
	case domain.EventUserAdjustment:
		p.trigger(ctx, ClassChange)
	case domain.EventPlaybackStopped, domain.EventPlaybackEnded:
		p.reset(ctx)
	}
}

// Stop aborts any pending settle windows and waits for their goroutines.
func (p *Policy) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// onStarted clears any pause carried over from the previous stream before
// the resume trigger runs. A stream switch can happen without a stop event,
// so the gate must not outlive the stream that set it.
func (p *Policy) onStarted(ctx context.Context) {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.trigger(ctx, ClassResume)
}

func (p *Policy) onPaused(ctx context.Context) {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	slog.DebugContext(ctx, "Playback paused, seek-backs gated")
}

// onResumed lifts the paused gate after a short grace and then runs the
// unpause trigger, off the handler goroutine so the bus dispatch is not
// held for the wait.
func (p *Policy) onResumed(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-p.clock.After(unpauseDelay):
		case <-p.stopCh:
			return
		}
		p.mu.Lock()
		p.paused = false
		p.mu.Unlock()
		p.trigger(ctx, ClassUnpause)
	}()
}

// reset clears playback state when the stream goes away. Bumping the
// generation abandons any settle window still in flight.
func (p *Policy) reset(ctx context.Context) {
	p.mu.Lock()
	p.paused = false
	p.lastSeekAt = time.Time{}
	p.pending = false
	p.gen++
	p.mu.Unlock()
	slog.DebugContext(ctx, "Playback stopped, seek-back state reset")
}

// trigger runs the gate checks for a class and, if they pass, schedules the
// seek after the settle window. The pending flag keeps a second trigger from
// piling a seek onto one that has not landed yet.
func (p *Policy) trigger(ctx context.Context, class string) {
	seconds := p.settings.GetInt(domain.SeekBackSecondsKey(class))
	if !p.settings.GetBool(domain.SeekBackEnableKey(class)) || seconds <= 0 {
		return
	}

	p.mu.Lock()
	switch {
	case p.paused:
		p.mu.Unlock()
		slog.DebugContext(ctx, "Seek-back skipped while paused", "class", class)
		metrics.SeeksIssued.WithLabelValues(class, "suppressed").Inc()
		return
	case p.pending:
		p.mu.Unlock()
		slog.DebugContext(ctx, "Seek-back skipped, another is pending", "class", class)
		metrics.SeeksIssued.WithLabelValues(class, "suppressed").Inc()
		return
	case !p.lastSeekAt.IsZero() && p.clock.Since(p.lastSeekAt) < seekCooldown:
		p.mu.Unlock()
		slog.DebugContext(ctx, "Seek-back skipped during cooldown", "class", class)
		metrics.SeeksIssued.WithLabelValues(class, "suppressed").Inc()
		return
	}
	p.pending = true
	gen := p.gen
	p.mu.Unlock()

	p.wg.Add(1)
	go p.settleAndSeek(ctx, class, seconds, gen)
}

func (p *Policy) settleAndSeek(ctx context.Context, class string, seconds, gen int) {
	defer p.wg.Done()

	select {
	case <-p.clock.After(settleDelay):
	case <-p.stopCh:
		p.clearPending(gen)
		return
	}

	p.mu.Lock()
	if gen != p.gen {
		// Playback stopped while we were settling.
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	err := p.players.SeekBy(ctx, seekPlayerID, -seconds)

	p.mu.Lock()
	if gen == p.gen {
		p.pending = false
		if err == nil {
			p.lastSeekAt = p.clock.Now()
		}
	}
	p.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "Seek-back failed", "class", class, "seconds", seconds, "error", err)
		metrics.SeeksIssued.WithLabelValues(class, "error").Inc()
		return
	}
	slog.InfoContext(ctx, "Seek-back issued", "class", class, "seconds", seconds)
	metrics.SeeksIssued.WithLabelValues(class, "ok").Inc()
}

func (p *Policy) clearPending(gen int) {
	p.mu.Lock()
	if gen == p.gen {
		p.pending = false
	}
	p.mu.Unlock()
}
