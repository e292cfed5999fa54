package domain

// EventType names a playback lifecycle event on the bus.
type EventType string

const (
	EventAVStarted       EventType = "AV_STARTED"
	EventAVChange        EventType = "ON_AV_CHANGE"
	EventPlaybackStopped EventType = "PLAYBACK_STOPPED"
	EventPlaybackEnded   EventType = "PLAYBACK_ENDED"
	EventPlaybackPaused  EventType = "PLAYBACK_PAUSED"
	EventPlaybackResumed EventType = "PLAYBACK_RESUMED"
	EventSeek            EventType = "PLAYBACK_SEEK"
	EventSeekChapter     EventType = "PLAYBACK_SEEK_CHAPTER"
	EventSpeedChanged    EventType = "PLAYBACK_SPEED_CHANGED"
	EventUserAdjustment  EventType = "USER_ADJUSTMENT"
)

// Event is the payload delivered to subscribers. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type EventType

	// Seek events
	SeekSeconds   int
	SeekOffsetSec int
	Chapter       int

	// Speed change
	Speed int

	// User adjustment: the newly committed offset.
	OffsetMillis int
}
