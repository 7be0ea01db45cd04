// Package media provides the media-output adapters the playback controller
// drives: an audio adapter built on beep and a silent clock-driven adapter.
package media

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/infra/config"
)

var (
	ErrNoSource          = errors.New("no source loaded")
	ErrUnsupportedSource = errors.New("unsupported source")
)

// New creates the output adapter selected by cfg.Type.
func New(cfg config.MediaConfig) (playback.Output, error) {
	zlog.Debug().Msgf("media: creating output: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case "silent":
		settings, err := decodeSettings[SilentSettings](cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid silent settings")
		}
		return NewSilent(settings), nil

	case "beep", "":
		settings, err := decodeSettings[BeepSettings](cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid beep settings")
		}
		return NewBeep(settings)

	default:
		return nil, errors.Newf("unsupported media type: %s", cfg.Type)
	}
}

// decodeSettings decodes free-form adapter settings into T, then applies
// defaults and validation.
func decodeSettings[T any](settings map[string]any) (T, error) {
	var result T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &result,
	})
	if err != nil {
		return result, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return result, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&result); err != nil {
		return result, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(result); err != nil {
		return result, errors.Wrap(err, "validation failed")
	}
	return result, nil
}

// sourceKind classifies a track URL.
type sourceKind int

const (
	sourceFile sourceKind = iota
	sourceHTTP
)

// parseSource returns where src lives and, for files, its local path.
func parseSource(src string) (sourceKind, string, error) {
	if src == "" {
		return 0, "", errors.Wrap(ErrUnsupportedSource, "empty url")
	}
	u, err := url.Parse(src)
	if err != nil {
		return 0, "", errors.Wrapf(ErrUnsupportedSource, "%s: %v", src, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		return sourceFile, src, nil
	case "file":
		return sourceFile, u.Path, nil
	case "http", "https":
		return sourceHTTP, src, nil
	default:
		return 0, "", errors.Wrapf(ErrUnsupportedSource, "scheme %q", u.Scheme)
	}
}
