// Package notify formats and sends the short-lived host toasts shown when an
// offset is applied or a manual adjustment is saved.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkaindl/offsetpilot/internal/domain"
)

const title = "Audio Offset Manager"

// Display names for codec tags.
var audioFormatNames = map[domain.AudioFormat]string{
	domain.AudioTrueHD:  "TrueHD",
	domain.AudioEAC3:    "DD+",
	domain.AudioAC3:     "DD",
	domain.AudioDTSHDMA: "DTS-HD MA",
	domain.AudioDTSX:    "DTS:X",
	domain.AudioDCA:     "DTS",
	domain.AudioPCM:     "PCM",
	domain.AudioUnknown: "Unknown Format",
}

var hdrTypeNames = map[domain.HDRType]string{
	domain.HDRDolbyVision: "DV",
	domain.HDR10:          "HDR10",
	domain.HDR10Plus:      "HDR10+",
	domain.HDRHLG:         "HLG",
	domain.HDRSDR:         "SDR",
}

// Truncated rate buckets shown with their real rates.
var fpsClassNames = map[domain.FPSClass]string{
	"23": "23.98",
	"24": "24.00",
	"25": "25.00",
	"29": "29.97",
	"30": "30.00",
	"50": "50.00",
	"59": "59.94",
	"60": "60.00",
}

// Notifier sends offset toasts through the host's notification sink,
// honoring the enable flag and configured display duration.
type Notifier struct {
	settings domain.SettingsStore
	sink     domain.NotificationSink
}

func New(settings domain.SettingsStore, sink domain.NotificationSink) *Notifier {
	return &Notifier{settings: settings, sink: sink}
}

// OffsetApplied announces a learned offset re-applied at stream start or on a
// format change.
func (n *Notifier) OffsetApplied(ctx context.Context, delayMillis int, sig domain.StreamSignature) {
	n.send(ctx, "Offset applied:", delayMillis, sig)
}

// OffsetSaved announces a manual adjustment committed by the poller.
func (n *Notifier) OffsetSaved(ctx context.Context, delayMillis int, sig domain.StreamSignature) {
	n.send(ctx, "Offset saved:", delayMillis, sig)
}

func (n *Notifier) send(ctx context.Context, prefix string, delayMillis int, sig domain.StreamSignature) {
	if !n.settings.GetBool(domain.KeyNotifications) {
		return
	}

	message := FormatMessage(prefix, delayMillis, sig)
	displayMillis := n.settings.GetInt(domain.KeyNotificationSecs) * 1000

	if err := n.sink.Notify(ctx, title, message, displayMillis); err != nil {
		slog.WarnContext(ctx, "Failed to send notification", "error", err)
		return
	}
	slog.DebugContext(ctx, "Notification sent", "message", message)
}

// FormatMessage renders the toast body. Positive delays get an explicit sign;
// the fps segment is omitted when the signature buckets all rates together.
func FormatMessage(prefix string, delayMillis int, sig domain.StreamSignature) string {
	sign := ""
	if delayMillis > 0 {
		sign = "+"
	}

	audio := displayName(audioFormatNames, sig.Audio, string(sig.Audio))
	hdr := displayName(hdrTypeNames, sig.HDR, string(sig.HDR))

	if sig.FPS == domain.FPSAll {
		return fmt.Sprintf("%s %s%d ms\n%s | %s", prefix, sign, delayMillis, hdr, audio)
	}

	fps := displayName(fpsClassNames, sig.FPS, string(sig.FPS))
	return fmt.Sprintf("%s %s%d ms\n%s | %s FPS | %s", prefix, sign, delayMillis, hdr, fps, audio)
}

func displayName[K comparable](names map[K]string, key K, fallback string) string {
	if name, ok := names[key]; ok {
		return name
	}
	return fallback
}
