package notification

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/domain/track"
)

// Type represents a notification type.
type Type int

const (
	TypeTrackChanged Type = iota + 1 // The current track changed
	TypeViewUpdated                  // Transport, mode, volume or time changed
	TypeToast                        // A user-visible failure message
	TypeInitialState                 // Snapshot sent to a new subscriber
)

// String returns the string representation of the notification type.
func (t Type) String() string {
	switch t {
	case TypeTrackChanged:
		return "track_changed"
	case TypeViewUpdated:
		return "view_updated"
	case TypeToast:
		return "toast"
	case TypeInitialState:
		return "initial_state"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	switch string(b) {
	case "track_changed":
		*t = TypeTrackChanged
	case "view_updated":
		*t = TypeViewUpdated
	case "toast":
		*t = TypeToast
	case "initial_state":
		*t = TypeInitialState
	default:
		return errors.Newf("unknown notification type: %q", string(b))
	}
	return nil
}

// TrackInfo is the wire form of a track.
type TrackInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"` // Seconds, 0 if unknown
}

// NewTrackInfo converts a track to its wire form.
func NewTrackInfo(t track.Track) *TrackInfo {
	return &TrackInfo{
		ID:       t.ID,
		Title:    t.Title,
		Artist:   t.Artist,
		URL:      t.URL,
		Duration: t.Duration.Seconds(),
	}
}

// Notification is broadcast to every subscriber.
type Notification struct {
	Type       Type           `json:"type"`
	SequenceNo uint64         `json:"sequence_no"`
	Track      *TrackInfo     `json:"track,omitempty"`
	View       *playback.View `json:"view,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Messages holds the toast texts shown for each failure kind.
type Messages struct {
	LoadFailed     string
	PlaybackFailed string
	MediaError     string
}

// DefaultMessages returns the built-in toast texts.
func DefaultMessages() Messages {
	return Messages{
		LoadFailed:     "Could not load track",
		PlaybackFailed: "Playback failed",
		MediaError:     "Playback error",
	}
}

// ToastMessage returns the toast text for a controller error.
func (m Messages) ToastMessage(err error) string {
	switch {
	case errors.Is(err, playback.ErrLoadFailed):
		return m.LoadFailed
	case errors.Is(err, playback.ErrPlaybackFailed):
		return m.PlaybackFailed
	default:
		return m.MediaError
	}
}

// InitialState builds the snapshot a new subscriber receives first.
func InitialState(view playback.View) *Notification {
	n := &Notification{Type: TypeInitialState, View: &view}
	if view.Track != nil {
		n.Track = NewTrackInfo(*view.Track)
	}
	return n
}

// FromEvent converts a controller event to the notification subscribers see.
func FromEvent(e playback.Event, msgs Messages) *Notification {
	view := e.View
	n := &Notification{View: &view}
	if e.Track != nil {
		n.Track = NewTrackInfo(*e.Track)
	}

	switch e.Type {
	case playback.EventTrackChanged:
		n.Type = TypeTrackChanged
	case playback.EventError:
		n.Type = TypeToast
		n.Message = msgs.ToastMessage(e.Err)
	default:
		n.Type = TypeViewUpdated
	}
	return n
}
