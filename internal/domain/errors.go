package domain

import "errors"

var (
	// ErrNoActivePlayer is returned by PlayerGateway.ActivePlayer when the host
	// reports an empty player list.
	ErrNoActivePlayer = errors.New("no active player")

	// ErrStreamNotReady is returned while the host's codec layer has not
	// settled yet and queries report placeholder values.
	ErrStreamNotReady = errors.New("stream not ready")
)
