package domain

import "fmt"

// HDRType is the normalized HDR classification of the video stream.
type HDRType string

const (
	HDRDolbyVision HDRType = "dolbyvision"
	HDR10          HDRType = "hdr10"
	HDR10Plus      HDRType = "hdr10plus"
	HDRHLG         HDRType = "hlg"
	HDRSDR         HDRType = "sdr"
	HDRUnknown     HDRType = "unknown"
)

// FPSClass is the discrete frame-rate bucket of the video stream. Besides the
// standard rates it can be FPSAll, a policy override meaning "one offset for
// every rate of this HDR type", or FPSUnknown when detection failed.
type FPSClass string

const (
	FPSAll     FPSClass = "all"
	FPSUnknown FPSClass = "unknown"
)

// AudioFormat is the normalized audio codec tag of the current audio stream.
type AudioFormat string

const (
	AudioTrueHD   AudioFormat = "truehd"
	AudioEAC3     AudioFormat = "eac3"
	AudioAC3      AudioFormat = "ac3"
	AudioDTSX     AudioFormat = "dtsx"
	AudioDTSHDMA  AudioFormat = "dtshd_ma"
	AudioDCA      AudioFormat = "dca"
	AudioPCM      AudioFormat = "pcm"
	AudioUnknown  AudioFormat = "unknown"
)

// NoPlayer is the sentinel player id meaning no active player was found.
const NoPlayer = -1

// StandardFPSRates are the frame rates that form their own offset bucket.
// Anything else classifies as FPSUnknown.
var StandardFPSRates = []int{23, 24, 25, 29, 30, 50, 59, 60}

// KnownHDRTypes are the HDR classifications a signature may carry besides
// HDRUnknown.
var KnownHDRTypes = []HDRType{HDRDolbyVision, HDR10, HDR10Plus, HDRHLG, HDRSDR}

// KnownAudioFormats are the codec tags a signature may carry besides
// AudioUnknown.
var KnownAudioFormats = []AudioFormat{
	AudioTrueHD, AudioEAC3, AudioAC3, AudioDTSX, AudioDTSHDMA, AudioDCA, AudioPCM,
}

// StreamSignature identifies the offset bucket of the currently playing
// stream. PlayerID is carried for issuing player commands but is not part of
// the identity key.
type StreamSignature struct {
	HDR      HDRType
	FPS      FPSClass
	Audio    AudioFormat
	PlayerID int
}

// Valid reports whether the signature can be used for offset lookup and
// storage. A signature with any unknown field never touches persisted state.
func (s StreamSignature) Valid() bool {
	return s.HDR != HDRUnknown && s.HDR != "" &&
		s.FPS != FPSUnknown && s.FPS != "" &&
		s.Audio != AudioUnknown && s.Audio != ""
}

// Key returns the persisted-settings key holding the learned offset for this
// signature. PlayerID is deliberately excluded.
func (s StreamSignature) Key() string {
	return fmt.Sprintf("%s_%s_%s", s.HDR, s.FPS, s.Audio)
}

func (s StreamSignature) String() string {
	return fmt.Sprintf("hdr=%s fps=%s audio=%s player=%d", s.HDR, s.FPS, s.Audio, s.PlayerID)
}

// FPSClassOf buckets a truncated frame rate into its FPSClass.
func FPSClassOf(rate int) FPSClass {
	for _, r := range StandardFPSRates {
		if r == rate {
			return FPSClass(fmt.Sprintf("%d", r))
		}
	}
	return FPSUnknown
}

// IsKnownHDR reports whether t is one of the recognized HDR classifications.
func IsKnownHDR(t HDRType) bool {
	for _, k := range KnownHDRTypes {
		if k == t {
			return true
		}
	}
	return false
}

// IsKnownAudioFormat reports whether f is one of the recognized codec tags.
func IsKnownAudioFormat(f AudioFormat) bool {
	for _, k := range KnownAudioFormats {
		if k == f {
			return true
		}
	}
	return false
}
