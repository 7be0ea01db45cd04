// Package library reads the music library that the catalogue backend exports
// as flat JSON files.
package library

import (
	"encoding/json"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

// trackRecord is the on-disk form of a track.
type trackRecord struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"` // Seconds
}

// playlistRecord is the on-disk form of a playlist.
type playlistRecord struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Tracks []string `json:"tracks"`
}

// Library is a read-only, reloadable view of the track and playlist files.
type Library struct {
	mu sync.RWMutex

	tracksPath    string
	playlistsPath string
	baseURL       *url.URL

	tracks    []track.Track
	byID      map[string]int
	playlists []playlist.Playlist

	onReload func()
}

// Option configures a Library.
type Option func(*Library)

// WithReloadHook registers fn to run after every successful reload.
func WithReloadHook(fn func()) Option {
	return func(l *Library) {
		l.onReload = fn
	}
}

// Open reads the library files described by cfg. Missing files yield an
// empty library.
func Open(cfg config.LibraryConfig, opts ...Option) (*Library, error) {
	l := &Library{
		tracksPath:    filepath.Join(cfg.Dir, cfg.TracksFile),
		playlistsPath: filepath.Join(cfg.Dir, cfg.PlaylistsFile),
		byID:          make(map[string]int),
	}
	if cfg.MediaBaseURL != "" {
		u, err := url.Parse(cfg.MediaBaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid media base url")
		}
		l.baseURL = u
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads both files. The previous contents are kept on error.
func (l *Library) Reload() error {
	var trackRecords []trackRecord
	if err := readJSON(l.tracksPath, &trackRecords); err != nil {
		return errors.Wrapf(err, "failed to read tracks from %s", l.tracksPath)
	}
	var playlistRecords []playlistRecord
	if err := readJSON(l.playlistsPath, &playlistRecords); err != nil {
		return errors.Wrapf(err, "failed to read playlists from %s", l.playlistsPath)
	}

	tracks := make([]track.Track, 0, len(trackRecords))
	byID := make(map[string]int, len(trackRecords))
	for _, r := range trackRecords {
		if r.ID == "" {
			zlog.Warn().Msgf("library: skipping track without id: title=%q", r.Title)
			continue
		}
		if _, dup := byID[r.ID]; dup {
			zlog.Warn().Msgf("library: skipping duplicate track: id=%s", r.ID)
			continue
		}
		byID[r.ID] = len(tracks)
		tracks = append(tracks, track.Track{
			ID:       r.ID,
			Title:    r.Title,
			Artist:   r.Artist,
			URL:      l.resolveURL(r.URL),
			Duration: time.Duration(r.Duration * float64(time.Second)),
		})
	}

	playlists := make([]playlist.Playlist, 0, len(playlistRecords))
	for _, r := range playlistRecords {
		playlists = append(playlists, playlist.Playlist{
			ID:       r.ID,
			Name:     r.Name,
			TrackIDs: r.Tracks,
		})
	}

	l.mu.Lock()
	l.tracks = tracks
	l.byID = byID
	l.playlists = playlists
	hook := l.onReload
	l.mu.Unlock()

	zlog.Info().Msgf("library: loaded: tracks=%d playlists=%d", len(tracks), len(playlists))
	if hook != nil {
		hook()
	}
	return nil
}

// Tracks returns every track in catalogue order.
func (l *Library) Tracks() []track.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]track.Track, len(l.tracks))
	copy(result, l.tracks)
	return result
}

// Track looks up a track by ID.
func (l *Library) Track(id string) (track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.byID[id]
	if !ok {
		return track.Track{}, false
	}
	return l.tracks[i], true
}

// Playlists returns every playlist.
func (l *Library) Playlists() []playlist.Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]playlist.Playlist, len(l.playlists))
	copy(result, l.playlists)
	return result
}

// Playlist looks up a playlist by ID.
func (l *Library) Playlist(id string) (playlist.Playlist, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, p := range l.playlists {
		if p.ID == id {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

// PlaylistTracks returns the tracks of a playlist in playlist order.
func (l *Library) PlaylistTracks(id string) ([]track.Track, bool) {
	p, ok := l.Playlist(id)
	if !ok {
		return nil, false
	}
	return p.Resolve(l.Tracks()), true
}

// resolveURL makes relative media paths absolute against the media base URL.
func (l *Library) resolveURL(raw string) string {
	if l.baseURL == nil || raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	resolved := *l.baseURL
	resolved.Path = path.Join(l.baseURL.Path, strings.TrimPrefix(u.Path, "/"))
	return resolved.String()
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
