package playback

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/domain/track"
)

// Errors
var (
	ErrLoadFailed     = errors.New("failed to load track")
	ErrPlaybackFailed = errors.New("playback failed")
	ErrMediaRuntime   = errors.New("media error during playback")
	ErrInvalidIndex   = errors.New("start index out of range")
)

// Config holds controller configuration.
type Config struct {
	InitialVolume    float64       // Output volume at construction, clamped to [0,1]
	RestartThreshold time.Duration // playPrevious restarts the track past this position
	SeekStep         time.Duration // Keyboard seek step
	VolumeStep       float64       // Keyboard volume step
}

const (
	defaultRestartThreshold = 3 * time.Second
	defaultSeekStep         = 5 * time.Second
	defaultVolumeStep       = 0.1
)

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the random source used for shuffle selection.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) {
		c.rnd = r
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		c.eventCh = make(chan Event, n)
	}
}

// failure classifies why a play attempt failed.
type failure int

const (
	failureLoad failure = iota
	failurePlayback
)

// Controller is the playback state machine. It exclusively owns the media
// output and the queue; every command and media notification runs to
// completion under one lock.
type Controller struct {
	mu sync.Mutex

	out Output

	// Queue and session state
	queue   Queue
	state   State
	playing bool
	shuffle bool
	repeat  RepeatMode
	volume  float64 // Last value set via SetVolume

	// Pending play attempt. playGen identifies the only attempt whose
	// result may still be applied.
	playGen    uint64
	playCancel context.CancelFunc
	wg         sync.WaitGroup

	rnd    *rand.Rand
	config Config

	// Events
	eventCh chan Event
	closed  bool

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller driving out.
func NewController(out Output, config Config, opts ...Option) *Controller {
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = defaultRestartThreshold
	}
	if config.SeekStep <= 0 {
		config.SeekStep = defaultSeekStep
	}
	if config.VolumeStep <= 0 {
		config.VolumeStep = defaultVolumeStep
	}
	config.InitialVolume = clamp01(config.InitialVolume)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		out:     out,
		queue:   Queue{CurrentIndex: -1},
		state:   StateIdle,
		repeat:  RepeatOff,
		volume:  config.InitialVolume,
		config:  config,
		eventCh: make(chan Event, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	out.SetVolume(c.volume)
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Run dispatches media notifications to the handlers until ctx is done or
// the output closes its event channel.
func (c *Controller) Run(ctx context.Context) {
	events := c.out.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case MediaTimeUpdate:
				c.OnTimeUpdate()
			case MediaDurationKnown:
				c.OnDurationKnown()
			case MediaEnded:
				c.OnTrackEnded()
			case MediaError:
				c.OnMediaError(ev.Err)
			}
		}
	}
}

// LoadTrack replaces the queue with a single-track queue and starts playing it.
func (c *Controller) LoadTrack(t track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = Queue{Tracks: []track.Track{t}, CurrentIndex: 0}
	c.loadCurrentLocked()
}

// LoadQueue replaces the queue wholesale and starts playing the entry at start.
// An out-of-range start leaves the controller untouched.
func (c *Controller) LoadQueue(tracks []track.Track, start int) error {
	q, err := NewQueue(tracks, start)
	if err != nil {
		return errors.Wrapf(err, "start=%d len=%d", start, len(tracks))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = q
	c.loadCurrentLocked()
	return nil
}

// Play requests playback of the bound source. The outcome is applied when
// the output reports it.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playLocked(failurePlayback)
}

// Pause stops playback. No-op while idle.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pauseLocked()
}

// TogglePlayPause pauses when playing, plays otherwise.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		c.pauseLocked()
		return
	}
	c.playLocked(failurePlayback)
}

// PlayNext advances to the next queue entry, or a random one when shuffled,
// keeping the queue.
func (c *Controller) PlayNext() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playNextLocked()
}

// PlayPrevious restarts the current track if it has played past the restart
// threshold, otherwise moves one entry back, wrapping to the end.
func (c *Controller) PlayPrevious() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.IsEmpty() {
		return
	}

	if c.out.Position() > c.config.RestartThreshold {
		c.out.SetPosition(0)
		c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
		return
	}

	c.queue.CurrentIndex = c.queue.PreviousIndex()
	c.loadCurrentLocked()
}

// Seek moves the position to fraction of the duration. No-op while the
// duration is unknown.
func (c *Controller) Seek(fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.out.Duration()
	if total <= 0 {
		return
	}
	c.out.SetPosition(time.Duration(clamp01(fraction) * float64(total)))
	c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
}

// SeekBy moves the position by delta, clamped to [0, duration].
func (c *Controller) SeekBy(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.out.Duration()
	if total <= 0 {
		return
	}
	pos := c.out.Position() + delta
	if pos < 0 {
		pos = 0
	}
	if pos > total {
		pos = total
	}
	c.out.SetPosition(pos)
	c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
}

// SetVolume clamps v to [0,1], applies it and remembers it for ToggleMute.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setVolumeLocked(v)
}

// NudgeVolume sets the volume relative to the current output volume.
func (c *Controller) NudgeVolume(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setVolumeLocked(c.out.Volume() + delta)
}

// ToggleMute mutes an audible output, or restores the last SetVolume value.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out.Volume() > 0 {
		c.out.SetVolume(0)
	} else {
		c.out.SetVolume(c.volume)
	}
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// ToggleShuffle flips the shuffle flag. The queue order is left untouched.
func (c *Controller) ToggleShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffle = !c.shuffle
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// CycleRepeatMode advances off -> all -> one -> off.
func (c *Controller) CycleRepeatMode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.repeat = c.repeat.Next()
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// OnTrackEnded applies the repeat policy when the output reaches the end.
func (c *Controller) OnTrackEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.queue.Current()
	if cur == nil {
		return
	}
	zlog.Debug().Msgf("playback: track ended: track=%s index=%d repeat=%s", cur.ID, c.queue.CurrentIndex, c.repeat)

	// The output stopped by itself.
	c.playing = false

	switch {
	case c.repeat == RepeatOne:
		c.state = StatePaused
		c.out.SetPosition(0)
		c.playLocked(failurePlayback)
	case c.repeat == RepeatAll || !c.queue.IsLast():
		c.playNextLocked()
	default:
		c.pauseLocked()
		c.out.SetPosition(0)
		c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
	}
}

// OnTimeUpdate publishes the new elapsed time and progress.
func (c *Controller) OnTimeUpdate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Current() == nil {
		return
	}
	c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
}

// OnDurationKnown publishes the now-known duration.
func (c *Controller) OnDurationKnown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Current() == nil {
		return
	}
	zlog.Debug().Msgf("playback: duration known: duration=%v", c.out.Duration())
	c.sendEventLocked(c.newEventLocked(EventTimeUpdated))
}

// OnMediaError reports a runtime media failure and pauses. The track and
// queue are kept so the user can retry.
func (c *Controller) OnMediaError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.queue.Current()
	if cur == nil {
		return
	}
	if err == nil {
		err = errors.New("unknown media error")
	}

	c.cancelPendingLocked()
	c.out.Pause()
	c.playing = false
	c.reportLocked(errors.Mark(errors.Wrapf(err, "track %s", cur.ID), ErrMediaRuntime))
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying returns true once the output confirmed playback.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// CurrentTrack returns the current track.
func (c *Controller) CurrentTrack() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.queue.Current()
	if cur == nil {
		return track.Track{}, false
	}
	return *cur, true
}

// Queue returns a copy of the queue.
func (c *Controller) Queue() Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Clone()
}

// Shuffled returns the shuffle flag.
func (c *Controller) Shuffled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuffle
}

// RepeatMode returns the repeat mode.
func (c *Controller) RepeatMode() RepeatMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repeat
}

// Volume returns the last volume set via SetVolume, which may differ from
// the output volume while muted.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// View returns the current UI snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildViewLocked()
}

// Close cancels any pending play attempt, waits for it and closes the
// event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelPendingLocked()
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
}

// loadCurrentLocked binds the current queue entry, announces it and starts
// playing it. Must be called with lock held.
func (c *Controller) loadCurrentLocked() {
	cur := c.queue.Current()
	if cur == nil {
		return
	}
	t := *cur

	// A newer load supersedes whatever attempt is still pending.
	c.cancelPendingLocked()
	c.playing = false
	c.state = StatePaused

	if h, ok := c.out.(DurationHinter); ok {
		h.HintDuration(t.Duration)
	}
	loadErr := c.out.Load(t.URL)

	zlog.Debug().Msgf("playback: track changed: track=%s index=%d queue_len=%d", t.ID, c.queue.CurrentIndex, c.queue.Len())
	c.sendEventLocked(c.newEventLocked(EventTrackChanged))

	if loadErr != nil {
		c.reportLocked(errors.Mark(errors.Wrapf(loadErr, "track %s", t.ID), ErrLoadFailed))
		return
	}

	c.playLocked(failureLoad)
}

// playLocked starts an asynchronous play attempt. Must be called with lock held.
func (c *Controller) playLocked(kind failure) {
	cur := c.queue.Current()
	if cur == nil || c.ctx.Err() != nil {
		return
	}
	if c.playing || c.playCancel != nil {
		return
	}

	c.playGen++
	gen := c.playGen
	ctx, cancel := context.WithCancel(c.ctx)
	c.playCancel = cancel
	trackID := cur.ID

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.out.Play(ctx)
		c.finishPlay(gen, trackID, kind, err)
	}()
}

// finishPlay applies the outcome of play attempt gen unless a newer load or
// pause superseded it.
func (c *Controller) finishPlay(gen uint64, trackID string, kind failure, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.playGen || c.closed {
		zlog.Debug().Msgf("playback: discarding superseded play result: track=%s gen=%d current_gen=%d err=%v",
			trackID, gen, c.playGen, err)
		// The output may have started anyway; nothing newer wants it running.
		if err == nil && !c.closed && !c.playing && c.playCancel == nil {
			c.out.Pause()
		}
		return
	}
	if c.playCancel != nil {
		c.playCancel()
		c.playCancel = nil
	}

	if err != nil {
		c.playing = false
		if kind == failureLoad {
			c.reportLocked(errors.Mark(errors.Wrapf(err, "track %s", trackID), ErrLoadFailed))
		} else {
			c.reportLocked(errors.Mark(errors.Wrapf(err, "track %s", trackID), ErrPlaybackFailed))
		}
		return
	}

	c.playing = true
	c.state = StatePlaying
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// pauseLocked must be called with lock held.
func (c *Controller) pauseLocked() {
	if c.queue.Current() == nil {
		return
	}

	c.cancelPendingLocked()
	c.out.Pause()

	if !c.playing && c.state == StatePaused {
		return
	}
	c.playing = false
	c.state = StatePaused
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// playNextLocked must be called with lock held.
func (c *Controller) playNextLocked() {
	if c.queue.IsEmpty() {
		return
	}
	c.queue.CurrentIndex = c.queue.NextIndex(c.shuffle, c.rnd)
	c.loadCurrentLocked()
}

// setVolumeLocked must be called with lock held.
func (c *Controller) setVolumeLocked(v float64) {
	c.volume = clamp01(v)
	c.out.SetVolume(c.volume)
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// cancelPendingLocked invalidates the pending play attempt, if any.
// Must be called with lock held.
func (c *Controller) cancelPendingLocked() {
	c.playGen++
	if c.playCancel != nil {
		c.playCancel()
		c.playCancel = nil
	}
}

// reportLocked surfaces one user-visible failure and settles into paused
// via the transient error state. Must be called with lock held.
func (c *Controller) reportLocked(err error) {
	zlog.Warn().Msgf("playback: %v", err)

	c.playing = false
	c.state = StateError
	e := c.newEventLocked(EventError)
	e.Err = err
	c.sendEventLocked(e)

	c.state = StatePaused
	c.sendEventLocked(c.newEventLocked(EventStateChanged))
}

// newEventLocked must be called with lock held.
func (c *Controller) newEventLocked(typ EventType) Event {
	v := c.buildViewLocked()
	return Event{
		Type:  typ,
		Track: v.Track,
		State: c.state,
		View:  v,
	}
}

// sendEventLocked delivers e to the event channel. Time updates are dropped
// when the consumer lags; every other event is delivered.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	if e.Type == EventTimeUpdated {
		select {
		case c.eventCh <- e:
		default:
		}
		return
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	}
}
