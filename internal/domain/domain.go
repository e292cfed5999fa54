package domain

import "context"

// PlayerGateway issues queries and commands against the host's player over
// its request/response protocol. Implementations must tolerate transient
// "not ready" responses; retrying is the caller's concern.
type PlayerGateway interface {
	// ActivePlayer returns the id of the active player, or NoPlayer when the
	// host reports none.
	ActivePlayer(ctx context.Context) (int, error)
	// CurrentAudioStream returns the raw codec tag and channel count of the
	// active audio stream. A codec of "none" means the stream is not ready yet.
	CurrentAudioStream(ctx context.Context, playerID int) (codec string, channels int, err error)
	// SetAudioDelay applies an audio delay in seconds to the given player.
	SetAudioDelay(ctx context.Context, playerID int, seconds float64) error
	// SeekBy seeks the given player relative to the current position.
	SeekBy(ctx context.Context, playerID int, seconds int) error
}

// GUIGateway reads presentation state from the host: info labels for codec
// detection and the live delay readout, and the currently displayed modal
// dialog for the live-adjustment poller.
type GUIGateway interface {
	InfoLabel(ctx context.Context, label string) (string, error)
	CurrentDialogID(ctx context.Context) (int, error)
}

// NotificationSink displays a short-lived message on the host.
type NotificationSink interface {
	Notify(ctx context.Context, title, message string, displayMillis int) error
}

// SignatureSource exposes the most recently resolved stream signature without
// re-probing the host. The poller uses it when committing manual adjustments.
type SignatureSource interface {
	Current() (StreamSignature, bool)
}
