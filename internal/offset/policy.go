// Package offset applies the learned audio delay for the current stream
// signature whenever playback starts or the AV stream changes, and decides
// when the live-adjustment poller should run.
package offset

import (
	"context"
	"log/slog"

	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/metrics"
)

// SignatureResolver probes and caches the current stream signature.
type SignatureResolver interface {
	Resolve(ctx context.Context) (domain.StreamSignature, bool)
	Clear()
}

// AdjustmentPoller is armed while the signature is monitorable and disarmed
// on playback stop. Both calls are idempotent.
type AdjustmentPoller interface {
	Start()
	Stop()
}

// AppliedNotifier announces an applied offset to the viewer.
type AppliedNotifier interface {
	OffsetApplied(ctx context.Context, delayMillis int, sig domain.StreamSignature)
}

// Policy is the decision core: it owns no state of its own and derives every
// decision from the settings store and the freshly resolved signature.
type Policy struct {
	players  domain.PlayerGateway
	settings domain.SettingsStore
	resolver SignatureResolver
	poller   AdjustmentPoller
	notifier AppliedNotifier
}

func NewPolicy(players domain.PlayerGateway, settings domain.SettingsStore, resolver SignatureResolver, poller AdjustmentPoller, notifier AppliedNotifier) *Policy {
	return &Policy{
		players:  players,
		settings: settings,
		resolver: resolver,
		poller:   poller,
		notifier: notifier,
	}
}

// Handle routes a bus event.
func (p *Policy) Handle(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventAVStarted, domain.EventAVChange:
		p.onAVEvent(ctx)
	case domain.EventPlaybackStopped, domain.EventPlaybackEnded:
		p.onPlaybackGone(ctx)
	}
}

// onAVEvent resolves the signature, applies the stored offset when allowed,
// and re-evaluates the poller either way. The first-run flag is read before
// Resolve because resolving consumes it: right after install no offset is
// applied, but monitoring still arms so the user's first adjustment is
// captured.
func (p *Policy) onAVEvent(ctx context.Context) {
	firstRun := p.settings.GetBool(domain.KeyNewInstall)

	sig, valid := p.resolver.Resolve(ctx)
	slog.DebugContext(ctx, "Resolved stream signature",
		"hdr", sig.HDR, "fps", sig.FPS, "audio", sig.Audio, "player_id", sig.PlayerID, "valid", valid)

	p.applyOffset(ctx, sig, valid, firstRun)
	p.evaluatePoller(ctx, sig)
}

func (p *Policy) applyOffset(ctx context.Context, sig domain.StreamSignature, valid, firstRun bool) {
	switch {
	case firstRun:
		slog.InfoContext(ctx, "Fresh install, not applying any offset yet")
		return
	case !valid:
		slog.DebugContext(ctx, "Signature incomplete, offset not applied")
		return
	case !p.settings.GetBool(domain.EnableHDRKey(sig.HDR)):
		slog.DebugContext(ctx, "Offsets disabled for HDR type", "hdr", sig.HDR)
		return
	case sig.PlayerID == domain.NoPlayer:
		slog.DebugContext(ctx, "No active player, offset not applied")
		return
	}

	delayMillis := p.settings.GetInt(sig.Key())
	if err := p.players.SetAudioDelay(ctx, sig.PlayerID, float64(delayMillis)/1000.0); err != nil {
		slog.WarnContext(ctx, "Failed to apply audio offset", "key", sig.Key(), "delay_ms", delayMillis, "error", err)
		return
	}

	metrics.OffsetsApplied.Inc()
	slog.InfoContext(ctx, "Applied audio offset", "key", sig.Key(), "delay_ms", delayMillis)
	if p.notifier != nil {
		p.notifier.OffsetApplied(ctx, delayMillis, sig)
	}
}

// evaluatePoller arms monitoring only when an adjustment could actually be
// attributed to a signature: monitoring enabled, the HDR type enabled, and
// both HDR and fps detected.
func (p *Policy) evaluatePoller(ctx context.Context, sig domain.StreamSignature) {
	armed := p.settings.GetBool(domain.KeyActiveMonitoring) &&
		p.settings.GetBool(domain.EnableHDRKey(sig.HDR)) &&
		sig.HDR != domain.HDRUnknown &&
		sig.FPS != domain.FPSUnknown

	if armed {
		p.poller.Start()
		return
	}
	slog.DebugContext(ctx, "Monitoring conditions not met, poller disarmed",
		"hdr", sig.HDR, "fps", sig.FPS)
	p.poller.Stop()
}

func (p *Policy) onPlaybackGone(ctx context.Context) {
	p.resolver.Clear()
	p.poller.Stop()
	slog.DebugContext(ctx, "Playback gone, signature cleared and poller disarmed")
}
