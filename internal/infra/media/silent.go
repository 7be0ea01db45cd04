package media

import (
	"context"
	"sync"
	"time"

	"github.com/osa030/19player/internal/app/playback"
)

// SilentSettings configures the silent adapter.
type SilentSettings struct {
	DefaultDuration time.Duration `mapstructure:"default_duration" default:"3m" validate:"gt=0"`
	TickInterval    time.Duration `mapstructure:"tick_interval" default:"250ms" validate:"gt=0"`
}

// Silent is an Output that plays nothing. Its position follows the wall
// clock while playing, which makes it usable on headless hosts and in tests.
type Silent struct {
	mu sync.Mutex

	settings SilentSettings

	url       string
	hint      time.Duration
	duration  time.Duration
	position  time.Duration // Position at startedAt
	startedAt time.Time
	playing   bool
	volume    float64

	events chan playback.MediaEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSilent creates a silent output and starts its clock.
func NewSilent(settings SilentSettings) *Silent {
	s := &Silent{
		settings: settings,
		volume:   1,
		events:   make(chan playback.MediaEvent, 16),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.tick()
	return s
}

// HintDuration implements playback.DurationHinter.
func (s *Silent) HintDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hint = d
}

// Load implements playback.Output.
func (s *Silent) Load(url string) error {
	s.mu.Lock()
	s.url = ""
	s.playing = false
	s.position = 0
	s.duration = 0
	hint := s.hint
	s.hint = 0

	if _, _, err := parseSource(url); err != nil {
		s.mu.Unlock()
		return err
	}

	s.url = url
	s.duration = s.settings.DefaultDuration
	if hint > 0 {
		s.duration = hint
	}
	s.mu.Unlock()

	s.emit(playback.MediaEvent{Type: playback.MediaDurationKnown}, false)
	return nil
}

// Play implements playback.Output.
func (s *Silent) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.url == "" {
		return ErrNoSource
	}
	if !s.playing {
		s.playing = true
		s.startedAt = time.Now()
	}
	return nil
}

// Pause implements playback.Output.
func (s *Silent) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		s.position = s.positionLocked()
		s.playing = false
	}
}

// SetPosition implements playback.Output.
func (s *Silent) SetPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	s.position = pos
	s.startedAt = time.Now()
}

// Position implements playback.Output.
func (s *Silent) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Duration implements playback.Output.
func (s *Silent) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetVolume implements playback.Output.
func (s *Silent) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Volume implements playback.Output.
func (s *Silent) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Events implements playback.Output.
func (s *Silent) Events() <-chan playback.MediaEvent {
	return s.events
}

// Close stops the clock. The event channel stays open; consumers stop on
// their own context.
func (s *Silent) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// positionLocked must be called with s.mu held.
func (s *Silent) positionLocked() time.Duration {
	pos := s.position
	if s.playing {
		pos += time.Since(s.startedAt)
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	return pos
}

// tick reports progress and the end of the source.
func (s *Silent) tick() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.settings.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if !s.playing {
			s.mu.Unlock()
			continue
		}
		pos := s.positionLocked()
		ended := s.duration > 0 && pos >= s.duration
		if ended {
			s.position = s.duration
			s.playing = false
		}
		s.mu.Unlock()

		if ended {
			s.emit(playback.MediaEvent{Type: playback.MediaEnded}, true)
		} else {
			s.emit(playback.MediaEvent{Type: playback.MediaTimeUpdate}, false)
		}
	}
}

// emit sends e without holding s.mu. Lossy events are dropped when the
// consumer lags.
func (s *Silent) emit(e playback.MediaEvent, reliable bool) {
	select {
	case <-s.done:
		return
	default:
	}
	if !reliable {
		select {
		case s.events <- e:
		default:
		}
		return
	}
	select {
	case s.events <- e:
	case <-s.done:
	}
}
