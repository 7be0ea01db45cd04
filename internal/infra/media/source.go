package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	"github.com/hashicorp/go-retryablehttp"
)

// loader fetches a whole source into memory and decodes it, so the decoder
// can seek regardless of where the bytes came from.
type loader struct {
	client   *retryablehttp.Client
	maxBytes int64
}

func newLoader(settings BeepSettings) *loader {
	client := retryablehttp.NewClient()
	client.RetryMax = settings.HTTPRetries
	client.HTTPClient.Timeout = settings.HTTPTimeout
	client.Logger = nil

	return &loader{
		client:   client,
		maxBytes: settings.MaxSourceBytes,
	}
}

// open reads and decodes src.
func (l *loader) open(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
	kind, location, err := parseSource(src)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var data []byte
	var contentType string
	switch kind {
	case sourceHTTP:
		data, contentType, err = l.fetch(ctx, location)
	default:
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to read %s", src)
	}

	streamer, format, err := decode(data, audioKind(src, contentType))
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", src)
	}
	return streamer, format, nil
}

func (l *loader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "19player/1.0")
	req.Header.Set("Accept", "audio/mpeg, audio/wav, audio/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read body")
	}
	if int64(len(data)) > l.maxBytes {
		return nil, "", errors.Newf("source larger than %d bytes", l.maxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// audioKind picks the decoder from the URL extension, then the content type.
func audioKind(src, contentType string) string {
	p := src
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	if strings.Contains(strings.ToLower(contentType), "wav") {
		return "wav"
	}
	return "mp3"
}

func decode(data []byte, kind string) (beep.StreamSeekCloser, beep.Format, error) {
	r := readSeekNopCloser{bytes.NewReader(data)}
	if kind == "wav" {
		return wav.Decode(r)
	}
	return mp3.Decode(r)
}

// readSeekNopCloser keeps the reader seekable for the decoders.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }
