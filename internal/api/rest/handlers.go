package rest

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/session"
	"github.com/osa030/19player/internal/domain/track"
)

// defaultSearchLimit applies when /tracks?q= has no limit.
const defaultSearchLimit = 50

// StateResponse is the body of GET /api/state and of every command.
type StateResponse struct {
	View  playback.View           `json:"view"`
	Track *notification.TrackInfo `json:"track,omitempty"`
}

// QueueResponse is the body of GET /api/queue.
type QueueResponse struct {
	Context      session.Context           `json:"context"`
	PlaylistID   string                    `json:"playlist_id,omitempty"`
	Query        string                    `json:"query,omitempty"`
	CurrentIndex int                       `json:"current_index"`
	Tracks       []*notification.TrackInfo `json:"tracks"`
}

// PlaylistResponse describes one playlist.
type PlaylistResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
}

// LoadRequest is the body of POST /api/load.
type LoadRequest struct {
	Context    session.Context `json:"context"`
	PlaylistID string          `json:"playlist_id"`
	Query      string          `json:"query"`
	TrackID    string          `json:"track_id"`
}

// SeekRequest is the body of POST /api/seek.
type SeekRequest struct {
	Fraction *float64 `json:"fraction"`
}

// VolumeRequest is the body of POST /api/volume.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// KeyRequest is the body of POST /api/key.
type KeyRequest struct {
	Key string `json:"key"`
}

func newStateResponse(view playback.View) StateResponse {
	resp := StateResponse{View: view}
	if view.Track != nil {
		resp.Track = notification.NewTrackInfo(*view.Track)
	}
	return resp
}

func trackInfos(tracks []track.Track) []*notification.TrackInfo {
	result := make([]*notification.TrackInfo, len(tracks))
	for i, t := range tracks {
		result[i] = notification.NewTrackInfo(t)
	}
	return result
}

func (s *Server) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, newStateResponse(s.session.Playback().View()))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	current := s.session.Current()
	queue := s.session.Playback().Queue()
	if current.Context == "" && !queue.IsEmpty() {
		current.Context = session.ContextLibrary
	}
	writeJSON(w, http.StatusOK, QueueResponse{
		Context:      current.Context,
		PlaylistID:   current.PlaylistID,
		Query:        current.Query,
		CurrentIndex: queue.CurrentIndex,
		Tracks:       trackInfos(queue.Tracks),
	})
}

// handleTracks lists the library, or searches it when q is set.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	lib := s.session.Library()
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, trackInfos(lib.Tracks()))
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.Newf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, trackInfos(lib.Search(query, limit)))
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	playlists := s.session.Library().Playlists()
	result := make([]PlaylistResponse, len(playlists))
	for i, p := range playlists {
		result[i] = PlaylistResponse{ID: p.ID, Name: p.Name, TrackCount: len(p.TrackIDs)}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.session.Load(session.LoadRequest{
		Context:    req.Context,
		PlaylistID: req.PlaylistID,
		Query:      req.Query,
		TrackID:    req.TrackID,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			zlog.Error().Msgf("rest: load failed: %v", err)
		}
		writeError(w, status, err)
		return
	}
	s.writeState(w)
}

// command wraps a controller call that takes no arguments.
func (s *Server) command(fn func(c *playback.Controller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(s.session.Playback())
		s.writeState(w)
	}
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Fraction == nil {
		writeError(w, http.StatusBadRequest, errors.New("fraction is required"))
		return
	}
	s.session.Playback().Seek(*req.Fraction)
	s.writeState(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, errors.New("volume is required"))
		return
	}
	s.session.Playback().SetVolume(*req.Volume)
	s.writeState(w)
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, ok := playback.ParseKey(req.Key)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.Newf("unknown key %q", req.Key))
		return
	}
	s.session.Playback().HandleKey(key, false)
	s.writeState(w)
}
