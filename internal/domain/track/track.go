// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track is the library's read-only view of a playable item.
// The playback controller only references it.
type Track struct {
	ID       string        // Stable library ID
	Title    string        // Track title
	Artist   string        // Artist name
	URL      string        // Playable resource locator
	Duration time.Duration // Track duration (0 if unknown until loaded)
}

// HasDuration reports whether the library knows the track duration.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// DisplayName returns "Artist - Title", or just the title if the artist is unknown.
func (t *Track) DisplayName() string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = t.ID
	}
	artist := strings.TrimSpace(t.Artist)
	if artist == "" {
		return title
	}
	return artist + " - " + title
}

// IDs returns the IDs of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// IndexOf returns the position of the track with the given ID, or -1.
func IndexOf(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
