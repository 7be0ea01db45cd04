// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/19player/internal/domain/track"
)

// Playlist is a named, ordered list of library track IDs.
type Playlist struct {
	ID       string   // Library playlist ID
	Name     string   // Playlist name
	TrackIDs []string // Track IDs in playback order
}

// Resolve returns the playlist's tracks in playlist order.
// IDs that are not present in the library are skipped.
func (p *Playlist) Resolve(library []track.Track) []track.Track {
	byID := make(map[string]track.Track, len(library))
	for _, t := range library {
		byID[t.ID] = t
	}

	result := make([]track.Track, 0, len(p.TrackIDs))
	for _, id := range p.TrackIDs {
		if t, ok := byID[id]; ok {
			result = append(result, t)
		}
	}
	return result
}

// TotalDuration returns the summed duration of the resolved tracks.
// Tracks with unknown duration count as zero.
func TotalDuration(tracks []track.Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		total += t.Duration
	}
	return total
}
