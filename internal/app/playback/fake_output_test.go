package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
)

// fakeOutput is an in-memory Output. Play results can be held back per URL
// with a gate to reproduce out-of-order completions.
type fakeOutput struct {
	mu sync.Mutex

	url      string
	loads    []string
	plays    int
	pauses   int
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64

	defaultDuration time.Duration
	durations       map[string]time.Duration
	loadErrs        map[string]error
	playErrs        map[string]error
	gates           map[string]chan error

	events chan MediaEvent
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		defaultDuration: 3 * time.Minute,
		durations:       make(map[string]time.Duration),
		loadErrs:        make(map[string]error),
		playErrs:        make(map[string]error),
		gates:           make(map[string]chan error),
		events:          make(chan MediaEvent, 16),
	}
}

func (f *fakeOutput) Load(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loads = append(f.loads, url)
	f.url = url
	f.playing = false
	f.position = 0
	if err, ok := f.loadErrs[url]; ok {
		f.duration = 0
		return err
	}
	if d, ok := f.durations[url]; ok {
		f.duration = d
	} else {
		f.duration = f.defaultDuration
	}
	return nil
}

func (f *fakeOutput) Play(ctx context.Context) error {
	f.mu.Lock()
	url := f.url
	f.plays++
	gate := f.gates[url]
	err := f.playErrs[url]
	f.mu.Unlock()

	// A gate ignores ctx on purpose: the result arrives whenever the test says so.
	if gate != nil {
		err = <-gate
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.url == url {
		f.playing = true
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.playing = false
}

func (f *fakeOutput) SetPosition(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = pos
}

func (f *fakeOutput) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeOutput) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeOutput) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeOutput) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeOutput) Events() <-chan MediaEvent {
	return f.events
}

func (f *fakeOutput) Close() error {
	return nil
}

func (f *fakeOutput) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func (f *fakeOutput) loadedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]string, len(f.loads))
	copy(result, f.loads)
	return result
}

func (f *fakeOutput) gate(url string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan error, 1)
	f.gates[url] = ch
	return ch
}

// recorder collects every event the controller emits.
type recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func record(c *Controller) *recorder {
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for e := range c.Events() {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Event
	for _, e := range r.events {
		if e.Type == typ {
			result = append(result, e)
		}
	}
	return result
}

func (r *recorder) count(typ EventType) int {
	return len(r.ofType(typ))
}

func newTestController(t *testing.T, out *fakeOutput, opts ...Option) (*Controller, *recorder) {
	t.Helper()
	c := NewController(out, Config{InitialVolume: 0.7}, opts...)
	rec := record(c)
	t.Cleanup(func() {
		c.Close()
		<-rec.done
	})
	return c, rec
}

func waitPlaying(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, c.IsPlaying, time.Second, time.Millisecond, "controller should report playing")
}

// settle waits until no play attempt is in flight.
func settle(c *Controller) {
	c.wg.Wait()
}

func makeTracks(ids ...string) []track.Track {
	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track.Track{
			ID:     id,
			Title:  "Title " + id,
			Artist: "Artist " + id,
			URL:    "/media/" + id + ".mp3",
		}
	}
	return tracks
}

var errDecode = errors.New("decode error")
