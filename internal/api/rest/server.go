package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/session"
	"github.com/osa030/19player/internal/infra/config"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// Server serves the control API for one session.
type Server struct {
	session  *session.Manager
	config   *config.Config
	upgrader websocket.Upgrader

	pingPeriod   time.Duration
	writeTimeout time.Duration
}

// NewServer creates a new Server.
func NewServer(session *session.Manager, cfg *config.Config) *Server {
	return &Server{
		session: session,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		pingPeriod:   30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Handler returns the routed and authenticated handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(NewAuthMiddleware(s.config.Server.Token))

	// Read
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.handleTracks).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.handlePlaylists).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleStream).Methods(http.MethodGet)

	// Commands
	api.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost)
	api.HandleFunc("/play", s.command(func(c *playback.Controller) { c.Play() })).Methods(http.MethodPost)
	api.HandleFunc("/pause", s.command(func(c *playback.Controller) { c.Pause() })).Methods(http.MethodPost)
	api.HandleFunc("/toggle", s.command(func(c *playback.Controller) { c.TogglePlayPause() })).Methods(http.MethodPost)
	api.HandleFunc("/next", s.command(func(c *playback.Controller) { c.PlayNext() })).Methods(http.MethodPost)
	api.HandleFunc("/previous", s.command(func(c *playback.Controller) { c.PlayPrevious() })).Methods(http.MethodPost)
	api.HandleFunc("/shuffle", s.command(func(c *playback.Controller) { c.ToggleShuffle() })).Methods(http.MethodPost)
	api.HandleFunc("/repeat", s.command(func(c *playback.Controller) { c.CycleRepeatMode() })).Methods(http.MethodPost)
	api.HandleFunc("/mute", s.command(func(c *playback.Controller) { c.ToggleMute() })).Methods(http.MethodPost)
	api.HandleFunc("/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/volume", s.handleVolume).Methods(http.MethodPost)
	api.HandleFunc("/key", s.handleKey).Methods(http.MethodPost)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Msgf("rest: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrTrackNotFound), errors.Is(err, session.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyContext),
		errors.Is(err, session.ErrUnknownContext),
		errors.Is(err, playback.ErrInvalidIndex):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}
