// Package playback provides the playback controller: one media output, one queue,
// and the shuffle/repeat/volume modes that drive it.
package playback

import "github.com/cockroachdb/errors"

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No track loaded, controls disabled
	StatePaused               // Track loaded, not playing
	StatePlaying              // Track loaded and playing
	StateError                // Transient: a failure was reported, settling to paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, v := range []State{StateIdle, StatePaused, StatePlaying, StateError} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return errors.Newf("unknown state %q", text)
}

// RepeatMode is the policy applied when the current track finishes.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the queue
	RepeatAll                   // Wrap to the start of the queue
	RepeatOne                   // Replay the same track
)

// Next returns the mode that follows m in the off -> all -> one -> off cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// Icon returns the display icon for the repeat mode.
func (m RepeatMode) Icon() string {
	if m == RepeatOne {
		return "🔂"
	}
	return "🔁"
}

// Label returns the display title for the repeat mode.
func (m RepeatMode) Label() string {
	switch m {
	case RepeatAll:
		return "Repeat: All"
	case RepeatOne:
		return "Repeat: One"
	default:
		return "Repeat: Off"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RepeatMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RepeatMode) UnmarshalText(text []byte) error {
	for _, v := range []RepeatMode{RepeatOff, RepeatAll, RepeatOne} {
		if v.String() == string(text) {
			*m = v
			return nil
		}
	}
	return errors.Newf("unknown repeat mode %q", text)
}

// VolumeTier is the mute-icon indicator derived from the output volume.
type VolumeTier int

const (
	VolumeMuted VolumeTier = iota // Volume is 0
	VolumeLow                     // Volume below 0.5
	VolumeFull                    // Volume at or above 0.5
)

// TierFor returns the tier for an output volume in [0,1].
func TierFor(volume float64) VolumeTier {
	switch {
	case volume <= 0:
		return VolumeMuted
	case volume < 0.5:
		return VolumeLow
	default:
		return VolumeFull
	}
}

// String returns the string representation of the tier.
func (v VolumeTier) String() string {
	switch v {
	case VolumeMuted:
		return "muted"
	case VolumeLow:
		return "low"
	case VolumeFull:
		return "full"
	default:
		return "unknown"
	}
}

// Icon returns the display icon for the tier.
func (v VolumeTier) Icon() string {
	switch v {
	case VolumeMuted:
		return "🔇"
	case VolumeLow:
		return "🔉"
	default:
		return "🔊"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v VolumeTier) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VolumeTier) UnmarshalText(text []byte) error {
	for _, t := range []VolumeTier{VolumeMuted, VolumeLow, VolumeFull} {
		if t.String() == string(text) {
			*v = t
			return nil
		}
	}
	return errors.Newf("unknown volume tier %q", text)
}
