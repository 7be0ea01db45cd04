package media

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/playback"
)

// BeepSettings configures the audio adapter.
type BeepSettings struct {
	SampleRate      int           `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	Buffer          time.Duration `mapstructure:"buffer" default:"100ms" validate:"gt=0"`
	ResampleQuality int           `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout" default:"30s" validate:"gt=0"`
	HTTPRetries     int           `mapstructure:"http_retries" default:"3" validate:"gte=0,lte=10"`
	MaxSourceBytes  int64         `mapstructure:"max_source_bytes" default:"268435456" validate:"gt=0"`
	TickInterval    time.Duration `mapstructure:"tick_interval" default:"250ms" validate:"gt=0"`
}

// The speaker is process-wide and can only be initialised once.
var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

func initSpeaker(rate beep.SampleRate, buffer time.Duration) (beep.SampleRate, error) {
	speakerOnce.Do(func() {
		speakerRate = rate
		speakerErr = speaker.Init(rate, rate.N(buffer))
		if speakerErr == nil {
			zlog.Info().Msgf("media: speaker initialized: sample_rate=%d buffer=%v", rate, buffer)
		}
	})
	return speakerRate, speakerErr
}

// Beep plays mp3 and wav sources from disk or HTTP on the local audio device.
type Beep struct {
	mu sync.Mutex

	settings BeepSettings
	loader   *loader
	rate     beep.SampleRate

	url     string
	gen     uint64        // Bumped on every Load
	pending time.Duration // Position requested before the source was decoded

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	queued   bool // Sequence is on the speaker
	playing  bool
	level    float64

	events chan playback.MediaEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewBeep initialises the speaker and creates the adapter.
func NewBeep(settings BeepSettings) (*Beep, error) {
	rate, err := initSpeaker(beep.SampleRate(settings.SampleRate), settings.Buffer)
	if err != nil {
		return nil, errors.Wrap(err, "speaker initialization failed")
	}

	b := &Beep{
		settings: settings,
		loader:   newLoader(settings),
		rate:     rate,
		level:    1,
		events:   make(chan playback.MediaEvent, 16),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.tick()
	return b, nil
}

// Load implements playback.Output. The source is only fetched by Play, so
// fetch and decode failures surface as play failures.
func (b *Beep) Load(url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	b.teardownLocked()
	b.url = ""
	b.pending = 0

	if _, _, err := parseSource(url); err != nil {
		return err
	}
	b.url = url
	return nil
}

// Play implements playback.Output.
func (b *Beep) Play(ctx context.Context) error {
	b.mu.Lock()
	if b.url == "" {
		b.mu.Unlock()
		return ErrNoSource
	}
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return err
	}
	if b.streamer != nil {
		b.startLocked()
		b.mu.Unlock()
		return nil
	}
	url, gen := b.url, b.gen
	b.mu.Unlock()

	streamer, format, err := b.loader.open(ctx, url)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		_ = streamer.Close()
		return errors.Newf("source replaced while loading %s", url)
	}
	// Checked under the lock so a Pause that cancelled ctx is never overtaken.
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		_ = streamer.Close()
		return err
	}
	b.streamer = streamer
	b.format = format
	b.ctrl = &beep.Ctrl{}
	b.volume = &effects.Volume{Streamer: b.ctrl, Base: 2}
	b.applyVolumeLocked()
	if b.pending > 0 {
		b.seekLocked(b.pending)
		b.pending = 0
	}
	b.startLocked()
	b.mu.Unlock()

	zlog.Debug().Msgf("media: decoded: url=%s sample_rate=%d channels=%d duration=%v",
		url, format.SampleRate, format.NumChannels, format.SampleRate.D(streamer.Len()))
	b.emit(playback.MediaEvent{Type: playback.MediaDurationKnown}, false)
	return nil
}

// Pause implements playback.Output.
func (b *Beep) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl == nil {
		return
	}
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
	b.playing = false
}

// SetPosition implements playback.Output.
func (b *Beep) SetPosition(pos time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if b.streamer == nil {
		b.pending = pos
		return
	}
	b.seekLocked(pos)
}

// Position implements playback.Output.
func (b *Beep) Position() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return b.pending
	}
	speaker.Lock()
	p := b.streamer.Position()
	speaker.Unlock()
	return b.format.SampleRate.D(p)
}

// Duration implements playback.Output.
func (b *Beep) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return 0
	}
	return b.format.SampleRate.D(b.streamer.Len())
}

// SetVolume implements playback.Output.
func (b *Beep) SetVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.level = v
	b.applyVolumeLocked()
}

// Volume implements playback.Output.
func (b *Beep) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// Events implements playback.Output.
func (b *Beep) Events() <-chan playback.MediaEvent {
	return b.events
}

// Close stops playback and releases the source.
func (b *Beep) Close() error {
	b.once.Do(func() {
		close(b.done)
		b.wg.Wait()

		b.mu.Lock()
		b.gen++
		b.teardownLocked()
		b.mu.Unlock()
	})
	return nil
}

// startLocked resumes the ctrl, queueing the sequence again after it ended.
// Must be called with b.mu held.
func (b *Beep) startLocked() {
	speaker.Lock()
	b.ctrl.Paused = false
	if !b.queued {
		b.ctrl.Streamer = beep.Resample(b.settings.ResampleQuality, b.format.SampleRate, b.rate, b.streamer)
	}
	speaker.Unlock()

	if !b.queued {
		gen := b.gen
		b.queued = true
		speaker.Play(beep.Seq(b.volume, beep.Callback(func() {
			// Runs on the speaker goroutine with the speaker locked.
			go b.finished(gen)
		})))
	}
	b.playing = true
}

// seekLocked must be called with b.mu held.
func (b *Beep) seekLocked(pos time.Duration) {
	n := b.format.SampleRate.N(pos)
	if length := b.streamer.Len(); n >= length {
		n = length - 1
	}
	if n < 0 {
		n = 0
	}
	speaker.Lock()
	err := b.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Msgf("media: seek failed: url=%s pos=%v err=%v", b.url, pos, err)
	}
}

// applyVolumeLocked maps [0,1] onto the exponential gain of effects.Volume.
// Must be called with b.mu held.
func (b *Beep) applyVolumeLocked() {
	if b.volume == nil {
		return
	}
	speaker.Lock()
	b.volume.Volume = (b.level - 1) * 5
	b.volume.Silent = b.level <= 0
	speaker.Unlock()
}

// teardownLocked must be called with b.mu held.
func (b *Beep) teardownLocked() {
	if b.queued {
		speaker.Clear()
		b.queued = false
	}
	if b.streamer != nil {
		if err := b.streamer.Close(); err != nil {
			zlog.Debug().Msgf("media: close streamer: %v", err)
		}
	}
	b.streamer = nil
	b.ctrl = nil
	b.volume = nil
	b.playing = false
}

// finished handles the end of the sequence queued for generation gen.
func (b *Beep) finished(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || !b.queued {
		b.mu.Unlock()
		return
	}
	b.queued = false
	b.playing = false
	b.mu.Unlock()

	b.emit(playback.MediaEvent{Type: playback.MediaEnded}, true)
}

// tick reports progress and stream errors while playing.
func (b *Beep) tick() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.settings.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if !b.playing || b.streamer == nil {
			b.mu.Unlock()
			continue
		}
		speaker.Lock()
		err := b.streamer.Err()
		speaker.Unlock()
		if err != nil {
			speaker.Lock()
			b.ctrl.Paused = true
			speaker.Unlock()
			b.playing = false
		}
		b.mu.Unlock()

		if err != nil {
			b.emit(playback.MediaEvent{Type: playback.MediaError, Err: err}, true)
		} else {
			b.emit(playback.MediaEvent{Type: playback.MediaTimeUpdate}, false)
		}
	}
}

// emit sends e without holding b.mu. Lossy events are dropped when the
// consumer lags.
func (b *Beep) emit(e playback.MediaEvent, reliable bool) {
	select {
	case <-b.done:
		return
	default:
	}
	if !reliable {
		select {
		case b.events <- e:
		default:
		}
		return
	}
	select {
	case b.events <- e:
	case <-b.done:
	}
}
