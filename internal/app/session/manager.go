// Package session provides the session manager: the application root that
// owns the playback controller, the library and the notification manager.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

var (
	ErrTrackNotFound    = errors.New("track not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrEmptyContext     = errors.New("nothing to play")
	ErrUnknownContext   = errors.New("unknown queue context")
)

// searchLimit caps the queue built from search results.
const searchLimit = 200

// Library is the read-only track source the queue contexts are built from.
type Library interface {
	Tracks() []track.Track
	Track(id string) (track.Track, bool)
	Playlists() []playlist.Playlist
	PlaylistTracks(id string) ([]track.Track, bool)
	Search(query string, limit int) []track.Track
}

// Context names the collection a queue is built from.
type Context string

const (
	ContextLibrary  Context = "library"
	ContextPlaylist Context = "playlist"
	ContextSearch   Context = "search"
)

// LoadRequest selects a queue context and the track to start from.
type LoadRequest struct {
	Context    Context
	PlaylistID string
	Query      string
	TrackID    string // Empty starts from the first track
}

// Manager manages the playback session.
type Manager struct {
	mu sync.Mutex

	// Components
	library      Library
	output       playback.Output
	playback     *playback.Controller
	notification *notification.Manager

	// Current queue context
	current LoadRequest

	// Channels
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewManager creates a new session manager driving out.
func NewManager(cfg *config.Config, lib Library, out playback.Output, opts ...playback.Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		library: lib,
		output:  out,
		playback: playback.NewController(out, playback.Config{
			InitialVolume:    cfg.Playback.InitialVolume,
			RestartThreshold: cfg.Playback.RestartThreshold(),
			SeekStep:         cfg.Playback.SeekStep(),
			VolumeStep:       cfg.Playback.VolumeStep,
		}, opts...),
		notification: notification.NewManager(
			notification.WithViewRate(cfg.Notification.ViewRateHz),
			notification.WithSendTimeout(cfg.Notification.SendTimeout()),
			notification.WithMessages(notification.Messages{
				LoadFailed:     cfg.Messages.LoadFailed,
				PlaybackFailed: cfg.Messages.PlaybackFailed,
				MediaError:     cfg.Messages.MediaError,
			}),
		),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start runs the media event loop and the notification loop until Close.
func (m *Manager) Start() {
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.playback.Run(m.ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.playbackLoop()
	}()
	zlog.Info().Msg("session: started")
}

// Done returns a channel that is closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Playback returns the playback controller.
func (m *Manager) Playback() *playback.Controller {
	return m.playback
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Library returns the track source.
func (m *Manager) Library() Library {
	return m.library
}

// Current returns the request the current queue was built from.
func (m *Manager) Current() LoadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// PlayLibrary queues the whole library and starts at trackID.
func (m *Manager) PlayLibrary(trackID string) error {
	return m.Load(LoadRequest{Context: ContextLibrary, TrackID: trackID})
}

// PlayPlaylist queues a playlist and starts at trackID.
func (m *Manager) PlayPlaylist(playlistID, trackID string) error {
	return m.Load(LoadRequest{Context: ContextPlaylist, PlaylistID: playlistID, TrackID: trackID})
}

// PlaySearch queues the results of query and starts at trackID.
func (m *Manager) PlaySearch(query, trackID string) error {
	return m.Load(LoadRequest{Context: ContextSearch, Query: query, TrackID: trackID})
}

// Load builds a fresh queue for req and hands it to the controller.
func (m *Manager) Load(req LoadRequest) error {
	tracks, err := m.resolve(req)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.Wrapf(ErrEmptyContext, "context=%s", req.Context)
	}

	start := 0
	if req.TrackID != "" {
		start = track.IndexOf(tracks, req.TrackID)
		if start < 0 {
			return errors.Wrapf(ErrTrackNotFound, "track %s not in %s", req.TrackID, req.Context)
		}
	}

	// Hold the lock across LoadQueue so Current matches the controller's queue.
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.playback.LoadQueue(tracks, start); err != nil {
		return errors.Wrap(err, "failed to load queue")
	}
	m.current = req
	zlog.Info().Msgf("session: queue loaded: context=%s playlist=%s query=%q start=%d len=%d",
		req.Context, req.PlaylistID, req.Query, start, len(tracks))
	return nil
}

// resolve returns the tracks of the context named by req.
func (m *Manager) resolve(req LoadRequest) ([]track.Track, error) {
	switch req.Context {
	case ContextLibrary, "":
		return m.library.Tracks(), nil
	case ContextPlaylist:
		tracks, ok := m.library.PlaylistTracks(req.PlaylistID)
		if !ok {
			return nil, errors.Wrapf(ErrPlaylistNotFound, "playlist %s", req.PlaylistID)
		}
		return tracks, nil
	case ContextSearch:
		return m.library.Search(req.Query, searchLimit), nil
	default:
		return nil, errors.Wrapf(ErrUnknownContext, "context=%q", string(req.Context))
	}
}

// playbackLoop forwards controller events to subscribers.
func (m *Manager) playbackLoop() {
	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	switch event.Type {
	case playback.EventTimeUpdated:
		// Frequent; not logged
	case playback.EventTrackChanged:
		if event.Track != nil {
			zlog.Info().Msgf("session: now playing: track=%s name=%q", event.Track.ID, event.Track.DisplayName())
		}
	default:
		zlog.Debug().Msgf("session: playback event: type=%s state=%s", event.Type, event.State)
	}

	m.notification.Publish(event)
}

// Close stops the event loops, closes the controller and the output.
func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
	}

	m.cancel()
	// Closing the controller closes its event channel, ending playbackLoop.
	m.playback.Close()
	m.wg.Wait()
	m.notification.Close()
	if err := m.output.Close(); err != nil {
		zlog.Warn().Msgf("session: failed to close media output: %v", err)
	}
	close(m.done)
	zlog.Info().Msg("session: closed")
}
