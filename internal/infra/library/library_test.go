package library

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

const tracksJSON = `[
  {"id": "t1", "title": "Bohemian Rhapsody", "artist": "Queen", "url": "/media/t1.mp3", "duration": 354},
  {"id": "t2", "title": "Under Pressure", "artist": "Queen", "url": "media/t2.mp3", "duration": 248.5},
  {"id": "t3", "title": "Hotel California", "artist": "Eagles", "url": "https://cdn.example.com/t3.mp3"},
  {"id": "t1", "title": "Duplicate", "artist": "Nobody", "url": "/media/dup.mp3"},
  {"title": "No ID", "url": "/media/none.mp3"}
]`

const playlistsJSON = `[
  {"id": "p1", "name": "Queen", "tracks": ["t2", "missing", "t1"]},
  {"id": "p2", "name": "Empty", "tracks": []}
]`

func writeLibrary(t *testing.T, dir, tracks, playlists string) {
	t.Helper()
	if tracks != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tracks.json"), []byte(tracks), 0o644))
	}
	if playlists != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "playlists.json"), []byte(playlists), 0o644))
	}
}

func testConfig(dir string) config.LibraryConfig {
	return config.LibraryConfig{
		Dir:           dir,
		TracksFile:    "tracks.json",
		PlaylistsFile: "playlists.json",
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, tracksJSON, playlistsJSON)

	lib, err := Open(testConfig(dir))
	require.NoError(t, err)

	tracks := lib.Tracks()
	assert.Equal(t, []string{"t1", "t2", "t3"}, track.IDs(tracks))
	assert.Equal(t, 354*time.Second, tracks[0].Duration)
	assert.Equal(t, 248500*time.Millisecond, tracks[1].Duration)
	assert.False(t, tracks[2].HasDuration())

	tr, ok := lib.Track("t1")
	require.True(t, ok)
	assert.Equal(t, "Bohemian Rhapsody", tr.Title)

	_, ok = lib.Track("missing")
	assert.False(t, ok)

	assert.Len(t, lib.Playlists(), 2)
	p, ok := lib.Playlist("p1")
	require.True(t, ok)
	assert.Equal(t, "Queen", p.Name)

	pt, ok := lib.PlaylistTracks("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"t2", "t1"}, track.IDs(pt))

	_, ok = lib.PlaylistTracks("nope")
	assert.False(t, ok)
}

func TestOpen_MissingFiles(t *testing.T) {
	lib, err := Open(testConfig(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, lib.Tracks())
	assert.Empty(t, lib.Playlists())
}

func TestOpen_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, "{not json", "")

	_, err := Open(testConfig(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracks")
}

func TestOpen_MediaBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, tracksJSON, "")

	cfg := testConfig(dir)
	cfg.MediaBaseURL = "http://media.local/files/"
	lib, err := Open(cfg)
	require.NoError(t, err)

	tests := []struct {
		id       string
		expected string
	}{
		{id: "t1", expected: "http://media.local/files/media/t1.mp3"},
		{id: "t2", expected: "http://media.local/files/media/t2.mp3"},
		{id: "t3", expected: "https://cdn.example.com/t3.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tr, ok := lib.Track(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.expected, tr.URL)
		})
	}
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, tracksJSON, playlistsJSON)

	lib, err := Open(testConfig(dir))
	require.NoError(t, err)

	writeLibrary(t, dir, "[oops", "")
	require.Error(t, lib.Reload())
	assert.Len(t, lib.Tracks(), 3)
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, tracksJSON, "")
	lib, err := Open(testConfig(dir))
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		limit    int
		expected []string
	}{
		{name: "empty query", query: "  ", expected: nil},
		{name: "artist", query: "queen", expected: []string{"t1", "t2"}},
		{name: "exact title first", query: "under pressure", expected: []string{"t2"}},
		{name: "case insensitive", query: "HOTEL", expected: []string{"t3"}},
		{name: "typo", query: "hotel califrnia", expected: []string{"t3"}},
		{name: "subsequence", query: "bhrhp", expected: []string{"t1"}},
		{name: "limit", query: "queen", limit: 1, expected: []string{"t1"}},
		{name: "no match", query: "zzzzzz", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lib.Search(tt.query, tt.limit)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.expected, track.IDs(got))
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, dir, tracksJSON, playlistsJSON)

	var reloads atomic.Int32
	lib, err := Open(testConfig(dir), WithReloadHook(func() { reloads.Add(1) }))
	require.NoError(t, err)
	require.Equal(t, int32(1), reloads.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lib.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeLibrary(t, dir, `[{"id": "n1", "title": "New", "artist": "Band", "url": "/n1.mp3"}]`, "")

	require.Eventually(t, func() bool {
		return len(lib.Tracks()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(2))

	cancel()
	assert.NoError(t, <-done)
}
