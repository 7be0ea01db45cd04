package playback

import "github.com/osa030/19player/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged EventType = iota // A new current track was loaded
	EventStateChanged                  // Transport, mode or volume changed
	EventTimeUpdated                   // Position or duration progressed
	EventError                         // A user-visible failure occurred
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventTimeUpdated:
		return "time_updated"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Current track (nil when idle)
	State State        // Playback state at emission time
	View  View         // UI snapshot at emission time
	Err   error        // Set for EventError
}
