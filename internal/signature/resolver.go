// Package signature derives the normalized stream signature (HDR type,
// frame-rate class, audio format) that keys learned offsets.
package signature

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/platform/retry"
)

// Host info labels probed during resolution.
const (
	labelProcessFPS     = "Player.Process(videofps)"
	labelProcessHDRType = "Player.Process(video.source.hdr.type)"
	labelFallbackHDR    = "VideoPlayer.HdrType"
	labelGamut          = "Player.Process(amlogic.eoft_gamut)"
)

const (
	defaultProbeAttempts = 10
	defaultProbeInterval = 500 * time.Millisecond

	// dtsxChannelThreshold: DTS-HD MA with more than 6 channels is really an
	// object-based DTS:X core.
	dtsxChannelThreshold = 6
)

// Resolver probes the host's player and GUI state and classifies it into a
// StreamSignature. It also records the platform capability flags discovered
// along the way, which the configuration UI reads elsewhere. Those flags are
// the only external state the resolver writes besides the first-run flag.
type Resolver struct {
	players  domain.PlayerGateway
	gui      domain.GUIGateway
	settings domain.SettingsStore
	clock    clockwork.Clock

	probeAttempts int
	probeInterval time.Duration

	group singleflight.Group

	mu         sync.Mutex
	current    domain.StreamSignature
	hasCurrent bool
	newInstall bool
}

// NewResolver creates a resolver with the standard probe policy (10 attempts
// at 500 ms). The first-run flag is captured once here and cleared on the
// first successful gather, mirroring the install flow.
func NewResolver(players domain.PlayerGateway, gui domain.GUIGateway, settings domain.SettingsStore, clock clockwork.Clock) *Resolver {
	return &Resolver{
		players:       players,
		gui:           gui,
		settings:      settings,
		clock:         clock,
		probeAttempts: defaultProbeAttempts,
		probeInterval: defaultProbeInterval,
		newInstall:    settings.GetBool(domain.KeyNewInstall),
	}
}

// Resolve probes the host and returns the classified signature plus a
// validity flag. Concurrent calls collapse into a single probe sequence.
// Resolving the same underlying host state twice yields identical results.
func (r *Resolver) Resolve(ctx context.Context) (domain.StreamSignature, bool) {
	v, _, _ := r.group.Do("resolve", func() (any, error) {
		return r.gather(ctx), nil
	})
	sig := v.(domain.StreamSignature)

	r.mu.Lock()
	r.current = sig
	r.hasCurrent = true
	r.mu.Unlock()

	return sig, sig.Valid()
}

// Current returns the last resolved signature without touching the host.
func (r *Resolver) Current() (domain.StreamSignature, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.hasCurrent
}

// Clear drops the cached signature. Called when playback stops or ends.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = domain.StreamSignature{}
	r.hasCurrent = false
	slog.Debug("Cleared stream signature")
}

func (r *Resolver) gather(ctx context.Context) domain.StreamSignature {
	playerID := r.resolvePlayerID(ctx)
	audio := r.resolveAudioFormat(ctx, playerID)
	fps := r.resolveFPSClass(ctx)
	hdr, platformHDRFull := r.resolveHDRType(ctx)
	hdr, gamutValid := r.promoteHLGViaGamut(ctx, hdr)

	// Capability flags are rewritten on every resolution so the settings UI
	// reflects what this platform can actually report.
	r.settings.SetBool(domain.KeyPlatformHDRFull, platformHDRFull)
	r.settings.SetBool(domain.KeyAdvancedHLG, gamutValid)

	if r.consumeNewInstall() {
		r.settings.SetBool(domain.KeyNewInstall, false)
	}

	fps = r.applyFPSOverride(hdr, fps)

	sig := domain.StreamSignature{HDR: hdr, FPS: fps, Audio: audio, PlayerID: playerID}
	slog.DebugContext(ctx, "Gathered stream signature", "signature", sig.String())
	return sig
}

func (r *Resolver) probePolicy() retry.Policy {
	return retry.Policy{MaxAttempts: r.probeAttempts, Interval: r.probeInterval}
}

func (r *Resolver) resolvePlayerID(ctx context.Context) int {
	id, err := retry.Do(ctx, r.clock, r.probePolicy(), func() (int, error) {
		return r.players.ActivePlayer(ctx)
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve active player", "error", err)
		return domain.NoPlayer
	}
	return id
}

type audioProbe struct {
	codec    string
	channels int
}

func (r *Resolver) resolveAudioFormat(ctx context.Context, playerID int) domain.AudioFormat {
	probe, err := retry.Do(ctx, r.clock, r.probePolicy(), func() (audioProbe, error) {
		codec, channels, err := r.players.CurrentAudioStream(ctx, playerID)
		if err != nil {
			return audioProbe{}, err
		}
		if codec == "none" {
			// Codec layer not settled yet.
			return audioProbe{}, domain.ErrStreamNotReady
		}
		return audioProbe{codec: codec, channels: channels}, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve audio stream", "error", err)
		return domain.AudioUnknown
	}

	return classifyAudio(probe.codec, probe.channels)
}

// classifyAudio normalizes a raw codec tag. DTS-HD MA with more than six
// channels is reclassified as DTS:X; any other unrecognized non-unknown tag
// falls back to generic PCM, sharing the pcm offset bucket.
func classifyAudio(codec string, channels int) domain.AudioFormat {
	tag := domain.AudioFormat(strings.TrimPrefix(codec, "pt-"))

	if tag == domain.AudioDTSHDMA && channels > dtsxChannelThreshold {
		return domain.AudioDTSX
	}
	if !domain.IsKnownAudioFormat(tag) && tag != domain.AudioUnknown {
		return domain.AudioPCM
	}
	if !domain.IsKnownAudioFormat(tag) {
		return domain.AudioUnknown
	}
	return tag
}

func (r *Resolver) resolveFPSClass(ctx context.Context) domain.FPSClass {
	raw, err := r.gui.InfoLabel(ctx, labelProcessFPS)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read fps label", "error", err)
		return domain.FPSUnknown
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		slog.DebugContext(ctx, "Unparseable fps value", "raw", raw)
		return domain.FPSUnknown
	}

	class := domain.FPSClassOf(int(value))
	if class == domain.FPSUnknown {
		slog.DebugContext(ctx, "Non-standard fps value", "fps", int(value))
	}
	return class
}

// resolveHDRType reads the primary HDR source, falling back to the legacy
// label when the platform does not fully report HDR. The returned bool is the
// platform_hdr_full capability.
func (r *Resolver) resolveHDRType(ctx context.Context) (domain.HDRType, bool) {
	raw, err := r.gui.InfoLabel(ctx, labelProcessHDRType)
	if err != nil {
		raw = ""
	}

	platformHDRFull := isUsableLabel(labelProcessHDRType, raw)
	if !platformHDRFull {
		raw, err = r.gui.InfoLabel(ctx, labelFallbackHDR)
		if err != nil {
			raw = ""
		}
		slog.DebugContext(ctx, "Using fallback HDR detection")
	}

	return normalizeHDR(labelProcessHDRType, raw), platformHDRFull
}

// normalizeHDR lowercases the raw label, folds "+" into "plus", strips
// spaces, and maps placeholder or empty text to SDR. The "hlghdr" variant
// some players report collapses to HLG.
func normalizeHDR(sourceLabel, raw string) domain.HDRType {
	s := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(raw, "+", "plus"), " ", ""))

	if s == "" || s == strings.ToLower(sourceLabel) {
		return domain.HDRSDR
	}
	if s == "hlghdr" {
		return domain.HDRHLG
	}

	t := domain.HDRType(s)
	if !domain.IsKnownHDR(t) {
		return domain.HDRUnknown
	}
	return t
}

// promoteHLGViaGamut upgrades an SDR classification to HLG when the gamut
// descriptor signal is available and names HLG. The returned bool is the
// advanced_hlg capability.
func (r *Resolver) promoteHLGViaGamut(ctx context.Context, hdr domain.HDRType) (domain.HDRType, bool) {
	raw, err := r.gui.InfoLabel(ctx, labelGamut)
	if err != nil {
		return hdr, false
	}

	gamutValid := isUsableLabel(labelGamut, raw)
	if hdr == domain.HDRSDR && gamutValid && strings.Contains(strings.ToLower(raw), "hlg") {
		slog.DebugContext(ctx, "HLG detected via gamut info")
		return domain.HDRHLG, gamutValid
	}
	return hdr, gamutValid
}

// applyFPSOverride forces the fps class to "all" when per-rate offsets are
// disabled for the resolved HDR type. This is a policy override, not a
// detection failure, so it never applies to unknown HDR.
func (r *Resolver) applyFPSOverride(hdr domain.HDRType, fps domain.FPSClass) domain.FPSClass {
	if hdr == domain.HDRUnknown {
		return fps
	}
	if !r.settings.GetBool(domain.EnableFPSKey(hdr)) && fps != domain.FPSUnknown {
		slog.Debug("Per-rate offsets disabled, bucketing all rates together", "hdr", hdr)
		return domain.FPSAll
	}
	return fps
}

func (r *Resolver) consumeNewInstall() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.newInstall {
		return false
	}
	r.newInstall = false
	return true
}

// isUsableLabel reports whether the host returned a real value for an info
// label: non-empty and not the label echoed back, which is how unknown
// labels are reported.
func isUsableLabel(label, value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && !strings.EqualFold(v, label)
}

var _ domain.SignatureSource = (*Resolver)(nil)
