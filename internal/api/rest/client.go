package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/osa030/19player/internal/app/notification"
)

// Commands accepted by Client.Command.
const (
	CommandPlay     = "play"
	CommandPause    = "pause"
	CommandToggle   = "toggle"
	CommandNext     = "next"
	CommandPrevious = "previous"
	CommandShuffle  = "shuffle"
	CommandRepeat   = "repeat"
	CommandMute     = "mute"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return strconv.Itoa(e.StatusCode) + ": " + e.Message
}

// Client talks to a player's control API.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetries sets the retry count for failed requests.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = d
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = time.Second
	httpClient.HTTPClient.Timeout = 10 * time.Second
	httpClient.CheckRetry = commandRetryPolicy
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// commandRetryPolicy retries reads like the default policy but retries
// commands only when no response arrived, so a command is never applied twice.
func commandRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// State returns the current playback state.
func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	var resp StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue returns the current queue.
func (c *Client) Queue(ctx context.Context) (*QueueResponse, error) {
	var resp QueueResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tracks lists the library, or searches it when query is not empty.
func (c *Client) Tracks(ctx context.Context, query string) ([]*notification.TrackInfo, error) {
	path := "/api/tracks"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var resp []*notification.TrackInfo
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Playlists lists the library playlists.
func (c *Client) Playlists(ctx context.Context) ([]PlaylistResponse, error) {
	var resp []PlaylistResponse
	if err := c.do(ctx, http.MethodGet, "/api/playlists", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Command runs one of the argument-less commands.
func (c *Client) Command(ctx context.Context, name string) (*StateResponse, error) {
	return c.post(ctx, "/api/"+name, nil)
}

// Load builds a new queue on the server.
func (c *Client) Load(ctx context.Context, req LoadRequest) (*StateResponse, error) {
	return c.post(ctx, "/api/load", req)
}

// Seek moves to a fraction of the current track.
func (c *Client) Seek(ctx context.Context, fraction float64) (*StateResponse, error) {
	return c.post(ctx, "/api/seek", SeekRequest{Fraction: &fraction})
}

// SetVolume sets the output volume.
func (c *Client) SetVolume(ctx context.Context, volume float64) (*StateResponse, error) {
	return c.post(ctx, "/api/volume", VolumeRequest{Volume: &volume})
}

// Key sends a key press.
func (c *Client) Key(ctx context.Context, key string) (*StateResponse, error) {
	return c.post(ctx, "/api/key", KeyRequest{Key: key})
}

// Watch calls fn for every notification until ctx is done or the server
// closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(*notification.Notification)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "failed to connect: status=%d", resp.StatusCode)
		}
		return errors.Wrap(err, "failed to connect")
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var n notification.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "failed to read notification")
		}
		fn(&n)
	}
}

func (c *Client) post(ctx context.Context, path string, body any) (*StateResponse, error) {
	var resp StateResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		var e errorResponse
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
