package playback

import (
	"context"
	"time"
)

// MediaEventType represents a media-lifecycle notification type.
type MediaEventType int

const (
	MediaTimeUpdate    MediaEventType = iota // Playback position progressed
	MediaDurationKnown                       // Duration of the bound source became known
	MediaEnded                               // Playback reached the end of the source
	MediaError                               // Decode/network failure while playing
)

// String returns the string representation of the media event type.
func (e MediaEventType) String() string {
	switch e {
	case MediaTimeUpdate:
		return "time_update"
	case MediaDurationKnown:
		return "duration_known"
	case MediaEnded:
		return "ended"
	case MediaError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaEvent is a notification from the media output.
type MediaEvent struct {
	Type MediaEventType
	Err  error // Set for MediaError
}

// Output is the media-output handle the controller drives.
//
// Play blocks until playback actually started, failed, or ctx was cancelled.
// A failure returned from Play must not also be delivered as a MediaError event.
type Output interface {
	// Load binds the source and resets the position to 0.
	Load(url string) error
	Play(ctx context.Context) error
	Pause()
	SetPosition(pos time.Duration)
	Position() time.Duration
	// Duration returns 0 while the duration is unknown.
	Duration() time.Duration
	SetVolume(v float64)
	Volume() float64
	Events() <-chan MediaEvent
	Close() error
}

// DurationHinter is implemented by outputs that cannot probe the duration
// themselves. The controller passes the track's catalogue duration before Load.
type DurationHinter interface {
	HintDuration(d time.Duration)
}
