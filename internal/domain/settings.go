package domain

// Persisted settings keys. Per-signature offsets live under the key returned
// by StreamSignature.Key.
const (
	KeyNewInstall         = "new_install"
	KeyPlatformHDRFull    = "platform_hdr_full"
	KeyAdvancedHLG        = "advanced_hlg"
	KeyActiveMonitoring   = "enable_active_monitoring"
	KeyNotifications      = "enable_notifications"
	KeyNotificationSecs   = "notification_seconds"
	keyEnableHDRPrefix    = "enable_"
	keyEnableFPSPrefix    = "enable_fps_"
	keySeekBackPrefix     = "seek_back_"
	keySeekBackEnablePref = "enable_seek_back_"
)

// EnableHDRKey returns the boolean key gating offsets for an HDR type.
func EnableHDRKey(t HDRType) string { return keyEnableHDRPrefix + string(t) }

// EnableFPSKey returns the boolean key gating per-rate offsets for an HDR type.
// When disabled, the resolver forces the fps class to FPSAll.
func EnableFPSKey(t HDRType) string { return keyEnableFPSPrefix + string(t) }

// SeekBackEnableKey returns the boolean key gating seek-backs for a trigger
// class ("resume", "adjust", "unpause", "change").
func SeekBackEnableKey(class string) string { return keySeekBackEnablePref + class }

// SeekBackSecondsKey returns the integer key holding the seek-back duration
// for a trigger class.
func SeekBackSecondsKey(class string) string { return keySeekBackPrefix + class + "_seconds" }

// SettingsStore is the persisted key/value settings contract. Getters return
// the zero default (false/0/"") on any failure; setters report success and
// never panic.
type SettingsStore interface {
	GetBool(key string) bool
	GetInt(key string) int
	GetString(key string) string
	SetBool(key string, value bool) bool
	SetInt(key string, value int) bool
	SetString(key string, value string) bool
}
