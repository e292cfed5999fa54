// Package monitor implements the live-adjustment poller: a background loop
// that watches the host GUI for the user opening the audio delay slider and,
// when it closes, commits the final value as the learned offset for the
// current stream signature.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/metrics"
	"github.com/mkaindl/offsetpilot/internal/platform/correlation"
)

// Host dialog ids watched by the poller.
const (
	DialogAudioSettings = 10124
	DialogAudioSlider   = 10145
)

const (
	labelAudioDelay = "Player.AudioDelay"

	// The loop polls fast while the user is in the delay UI and slow
	// otherwise, to balance responsiveness against host load.
	activePollInterval = 250 * time.Millisecond
	idlePollInterval   = time.Second
)

// EventPublisher is the slice of the bus the poller needs.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// SavedNotifier announces a committed manual adjustment.
type SavedNotifier interface {
	OffsetSaved(ctx context.Context, delayMillis int, sig domain.StreamSignature)
}

// session is the ephemeral per-arm state. It lives on the poller goroutine
// only and is recreated on every Start.
type session struct {
	settingsOpen   bool
	sliderWasOpen  bool
	lastDelayLabel string
	lastProcessed  *int
}

// Poller is armed and disarmed by the offset policy. Stop joins the loop:
// no tick runs after Stop returns.
type Poller struct {
	gui      domain.GUIGateway
	settings domain.SettingsStore
	source   domain.SignatureSource
	events   EventPublisher
	notifier SavedNotifier
	clock    clockwork.Clock

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	session session
}

func NewPoller(gui domain.GUIGateway, settings domain.SettingsStore, source domain.SignatureSource, events EventPublisher, notifier SavedNotifier, clock clockwork.Clock) *Poller {
	return &Poller{
		gui:      gui,
		settings: settings,
		source:   source,
		events:   events,
		notifier: notifier,
		clock:    clock,
	}
}

// Start arms the poller. Starting an armed poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	p.seedSession()
	p.stopCh = make(chan struct{})
	p.running = true
	metrics.PollerArmed.Set(1)

	p.wg.Add(1)
	go p.run(p.stopCh)
	slog.Debug("Adjustment poller armed")
}

// Stop disarms the poller and joins the loop before returning. Stopping a
// disarmed poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	metrics.PollerArmed.Set(0)
	slog.Debug("Adjustment poller disarmed")
}

// seedSession marks the currently stored offset as already processed so an
// unchanged slider close never re-commits it.
func (p *Poller) seedSession() {
	p.session = session{}
	if sig, ok := p.source.Current(); ok && sig.Valid() {
		stored := p.settings.GetInt(sig.Key())
		p.session.lastProcessed = &stored
	}
}

func (p *Poller) run(stopCh <-chan struct{}) {
	defer p.wg.Done()

	for {
		ctx := correlation.WithID(context.Background(), correlation.NewID())
		interval := p.tick(ctx)

		select {
		case <-p.clock.After(interval):
		case <-stopCh:
			return
		}
	}
}

// tick inspects the host dialog state once and returns the wait before the
// next tick.
func (p *Poller) tick(ctx context.Context) time.Duration {
	dialogID, err := p.gui.CurrentDialogID(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to read current dialog", "error", err)
		return idlePollInterval
	}

	s := &p.session

	if dialogID == DialogAudioSettings {
		if !s.settingsOpen {
			s.settingsOpen = true
			s.lastProcessed = nil
			slog.DebugContext(ctx, "Audio settings opened")
		}
	} else if s.settingsOpen {
		s.settingsOpen = false
		slog.DebugContext(ctx, "Audio settings closed")
	}

	sliderOpen := dialogID == DialogAudioSlider
	if sliderOpen {
		s.sliderWasOpen = true
		p.sampleDelay(ctx)
	} else if s.sliderWasOpen {
		s.sliderWasOpen = false
		slog.DebugContext(ctx, "Slider closed, processing changes")
		p.finalize(ctx)
	}

	if s.settingsOpen || sliderOpen {
		return activePollInterval
	}
	return idlePollInterval
}

func (p *Poller) sampleDelay(ctx context.Context) {
	label, err := p.gui.InfoLabel(ctx, labelAudioDelay)
	if err != nil {
		slog.DebugContext(ctx, "Failed to sample audio delay", "error", err)
		return
	}
	if label != p.session.lastDelayLabel {
		p.session.lastDelayLabel = label
		slog.DebugContext(ctx, "Live delay changed", "delay", label)
	}
}

// finalize runs on the tick where the slider transitioned open to closed: it
// converts the last sampled value and commits it if it is new. The processed
// marker advances even when nothing was stored, so an unchanged value is
// never reprocessed.
func (p *Poller) finalize(ctx context.Context) {
	ms, err := ConvertDelayToMillis(p.session.lastDelayLabel)
	if err != nil {
		slog.DebugContext(ctx, "Unparseable final delay", "delay", p.session.lastDelayLabel)
		return
	}
	if p.session.lastProcessed != nil && *p.session.lastProcessed == ms {
		return
	}

	p.commit(ctx, ms)
	p.session.lastProcessed = &ms
}

func (p *Poller) commit(ctx context.Context, delayMillis int) {
	sig, ok := p.source.Current()
	if !ok || !sig.Valid() {
		slog.DebugContext(ctx, "No valid signature, discarding adjustment", "delay_ms", delayMillis)
		return
	}

	if stored := p.settings.GetInt(sig.Key()); stored == delayMillis {
		return
	}
	if !p.settings.SetInt(sig.Key(), delayMillis) {
		slog.WarnContext(ctx, "Failed to store adjusted offset", "key", sig.Key(), "delay_ms", delayMillis)
		return
	}

	metrics.AdjustmentsCommitted.Inc()
	slog.InfoContext(ctx, "Stored manual audio offset", "key", sig.Key(), "delay_ms", delayMillis)

	if p.notifier != nil {
		p.notifier.OffsetSaved(ctx, delayMillis, sig)
	}

	// Published from a detached goroutine: a bus dispatch may be stopping this
	// poller right now, and publishing inline from the tick would deadlock
	// that Stop against the dispatch lock.
	ev := domain.Event{Type: domain.EventUserAdjustment, OffsetMillis: delayMillis}
	go p.events.Publish(ctx, ev)
}

// ConvertDelayToMillis parses the host's delay readout ("-0.075 s") into
// signed integer milliseconds.
func ConvertDelayToMillis(label string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), "s"))
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse delay %q: %w", label, err)
	}
	return int(seconds * 1000), nil
}
