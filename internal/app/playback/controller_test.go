package playback

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
)

func TestController_InitialState(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.IsPlaying())
	assert.Equal(t, -1, c.Queue().CurrentIndex)
	assert.InDelta(t, 0.7, out.Volume(), 1e-9)

	v := c.View()
	assert.False(t, v.ControlsEnabled)
	assert.Nil(t, v.Track)
	assert.Equal(t, "0:00", v.Elapsed)
	assert.Equal(t, "0:00", v.Total)
	assert.Equal(t, "Repeat: Off", v.RepeatLabel)
}

func TestController_IdleCommandsAreNoOps(t *testing.T) {
	out := newFakeOutput()
	c, rec := newTestController(t, out)

	c.Play()
	c.Pause()
	c.TogglePlayPause()
	c.PlayNext()
	c.PlayPrevious()
	c.Seek(0.5)
	c.OnTrackEnded()
	c.OnMediaError(errDecode)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, out.playCount())
	assert.Empty(t, out.loadedURLs())
	assert.Equal(t, 0, rec.count(EventError))
}

func TestController_LoadTrack(t *testing.T) {
	out := newFakeOutput()
	c, rec := newTestController(t, out)

	tracks := makeTracks("a", "b")
	require.NoError(t, c.LoadQueue(tracks, 1))
	waitPlaying(t, c)

	// Loading a single track replaces the queue wholesale.
	single := track.Track{ID: "x", Title: "X", URL: "/media/x.mp3"}
	c.LoadTrack(single)

	q := c.Queue()
	assert.Equal(t, []string{"x"}, track.IDs(q.Tracks))
	assert.Equal(t, 0, q.CurrentIndex)

	waitPlaying(t, c)
	assert.Equal(t, StatePlaying, c.State())

	cur, ok := c.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "x", cur.ID)
	assert.Equal(t, []string{"/media/b.mp3", "/media/x.mp3"}, out.loadedURLs())

	changed := rec.ofType(EventTrackChanged)
	require.Len(t, changed, 2)
	assert.Equal(t, "b", changed[0].Track.ID)
	assert.Equal(t, "x", changed[1].Track.ID)
	assert.True(t, c.View().ControlsEnabled)
}

func TestController_TrackChangedDoesNotWaitForPlayback(t *testing.T) {
	out := newFakeOutput()
	gate := out.gate("/media/a.mp3")
	c, rec := newTestController(t, out)

	c.LoadTrack(makeTracks("a")[0])

	// The notification is out before the output confirmed playback.
	require.Eventually(t, func() bool { return rec.count(EventTrackChanged) == 1 }, time.Second, time.Millisecond)
	assert.False(t, c.IsPlaying())

	gate <- nil
	waitPlaying(t, c)
}

func TestController_LoadQueue_InvalidIndex(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		start int
	}{
		{name: "empty queue", size: 0, start: 0},
		{name: "negative start", size: 3, start: -1},
		{name: "start past end", size: 3, start: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newFakeOutput()
			c, _ := newTestController(t, out)

			ids := make([]string, tt.size)
			for i := range ids {
				ids[i] = string(rune('a' + i))
			}
			err := c.LoadQueue(makeTracks(ids...), tt.start)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIndex))
			assert.Equal(t, StateIdle, c.State())
			assert.Empty(t, out.loadedURLs())
		})
	}
}

func TestController_PlayNext_CyclicOrder(t *testing.T) {
	for size := 1; size <= 5; size++ {
		for start := 0; start < size; start++ {
			out := newFakeOutput()
			c, _ := newTestController(t, out)

			ids := make([]string, size)
			for i := range ids {
				ids[i] = string(rune('a' + i))
			}
			require.NoError(t, c.LoadQueue(makeTracks(ids...), start))

			expected := start
			for step := 0; step < 2*size+1; step++ {
				c.PlayNext()
				expected = (expected + 1) % size
				assert.Equal(t, expected, c.Queue().CurrentIndex, "size=%d start=%d step=%d", size, start, step)
			}
			assert.Equal(t, size, c.Queue().Len(), "queue must be preserved")
		}
	}
}

func TestController_PlayNext_WrapScenario(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	require.NoError(t, c.LoadQueue(makeTracks("A", "B", "C"), 0))

	steps := []string{"B", "C", "A"}
	for i, want := range steps {
		c.PlayNext()
		cur, ok := c.CurrentTrack()
		require.True(t, ok)
		assert.Equal(t, want, cur.ID, "step %d", i)
	}
	assert.Equal(t, 0, c.Queue().CurrentIndex)
	waitPlaying(t, c)
}

func TestController_PlayNext_Shuffle(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out, WithRand(rand.New(rand.NewSource(42))))

	tracks := makeTracks("a", "b", "c", "d")
	require.NoError(t, c.LoadQueue(tracks, 0))
	c.ToggleShuffle()
	require.True(t, c.Shuffled())

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		c.PlayNext()
		idx := c.Queue().CurrentIndex
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, len(tracks))
		seen[idx] = true
	}

	// Uniform selection over 200 draws reaches every index.
	assert.Len(t, seen, len(tracks))
	// Shuffle is applied at selection time, never as a permutation.
	assert.Equal(t, track.IDs(tracks), track.IDs(c.Queue().Tracks))
}

func TestController_PlayNext_ShuffleMayRepeatCurrent(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	require.NoError(t, c.LoadQueue(makeTracks("only"), 0))
	c.ToggleShuffle()
	c.PlayNext()

	assert.Equal(t, 0, c.Queue().CurrentIndex)
	assert.Equal(t, []string{"/media/only.mp3", "/media/only.mp3"}, out.loadedURLs())
}

func TestController_ToggleShuffle_DoesNotReorder(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	tracks := makeTracks("a", "b", "c")
	require.NoError(t, c.LoadQueue(tracks, 2))

	c.ToggleShuffle()
	assert.True(t, c.Shuffled())
	c.ToggleShuffle()
	assert.False(t, c.Shuffled())

	q := c.Queue()
	assert.Equal(t, track.IDs(tracks), track.IDs(q.Tracks))
	assert.Equal(t, 2, q.CurrentIndex)
}

func TestController_PlayPrevious(t *testing.T) {
	tests := []struct {
		name          string
		start         int
		position      time.Duration
		expectedIndex int
		restarted     bool
	}{
		{name: "moves back", start: 2, position: time.Second, expectedIndex: 1},
		{name: "wraps to the end", start: 0, position: 0, expectedIndex: 2},
		{name: "exactly at threshold moves back", start: 1, position: 3 * time.Second, expectedIndex: 0},
		{name: "past threshold restarts", start: 1, position: 3*time.Second + time.Millisecond, expectedIndex: 1, restarted: true},
		{name: "far past threshold restarts", start: 0, position: 2 * time.Minute, expectedIndex: 0, restarted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newFakeOutput()
			c, _ := newTestController(t, out)

			require.NoError(t, c.LoadQueue(makeTracks("a", "b", "c"), tt.start))
			waitPlaying(t, c)
			out.SetPosition(tt.position)
			loadsBefore := len(out.loadedURLs())

			c.PlayPrevious()

			assert.Equal(t, tt.expectedIndex, c.Queue().CurrentIndex)
			assert.Equal(t, time.Duration(0), out.Position())
			assert.Equal(t, 3, c.Queue().Len())
			if tt.restarted {
				assert.Len(t, out.loadedURLs(), loadsBefore, "restart must not rebind the source")
				assert.True(t, c.IsPlaying())
			} else {
				assert.Len(t, out.loadedURLs(), loadsBefore+1)
			}
		})
	}
}

func TestController_CycleRepeatMode(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	modes := []RepeatMode{RepeatAll, RepeatOne, RepeatOff}
	for _, want := range modes {
		c.CycleRepeatMode()
		assert.Equal(t, want, c.RepeatMode())
	}

	for _, m := range []RepeatMode{RepeatOff, RepeatAll, RepeatOne} {
		assert.Equal(t, m, m.Next().Next().Next(), "cycle of order 3 from %s", m)
	}
}

func TestController_OnTrackEnded(t *testing.T) {
	tests := []struct {
		name          string
		repeat        RepeatMode
		start         int
		expectedIndex int
		expectPlaying bool
	}{
		{name: "repeat one keeps index", repeat: RepeatOne, start: 1, expectedIndex: 1, expectPlaying: true},
		{name: "repeat one at last keeps index", repeat: RepeatOne, start: 2, expectedIndex: 2, expectPlaying: true},
		{name: "repeat off advances", repeat: RepeatOff, start: 0, expectedIndex: 1, expectPlaying: true},
		{name: "repeat off stops at end", repeat: RepeatOff, start: 2, expectedIndex: 2, expectPlaying: false},
		{name: "repeat all advances", repeat: RepeatAll, start: 1, expectedIndex: 2, expectPlaying: true},
		{name: "repeat all wraps", repeat: RepeatAll, start: 2, expectedIndex: 0, expectPlaying: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newFakeOutput()
			c, _ := newTestController(t, out)

			for c.RepeatMode() != tt.repeat {
				c.CycleRepeatMode()
			}
			require.NoError(t, c.LoadQueue(makeTracks("a", "b", "c"), tt.start))
			waitPlaying(t, c)
			out.SetPosition(out.Duration())
			playsBefore := out.playCount()

			c.OnTrackEnded()

			assert.Equal(t, tt.expectedIndex, c.Queue().CurrentIndex)
			assert.Equal(t, time.Duration(0), out.Position())
			if tt.expectPlaying {
				waitPlaying(t, c)
				assert.Equal(t, playsBefore+1, out.playCount())
				assert.Equal(t, StatePlaying, c.State())
			} else {
				settle(c)
				assert.False(t, c.IsPlaying())
				assert.Equal(t, StatePaused, c.State())
				assert.Equal(t, playsBefore, out.playCount())
			}
		})
	}
}

func TestController_SetVolume_Clamps(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{name: "below zero", input: -0.5, expected: 0},
		{name: "zero", input: 0, expected: 0},
		{name: "middle", input: 0.42, expected: 0.42},
		{name: "one", input: 1, expected: 1},
		{name: "above one", input: 7, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newFakeOutput()
			c, _ := newTestController(t, out)

			c.SetVolume(tt.input)

			assert.InDelta(t, tt.expected, out.Volume(), 1e-9)
			assert.InDelta(t, tt.expected, c.Volume(), 1e-9)
		})
	}
}

func TestController_ToggleMute(t *testing.T) {
	t.Run("round trip restores last set volume", func(t *testing.T) {
		out := newFakeOutput()
		c, _ := newTestController(t, out)

		c.SetVolume(0.8)
		c.SetVolume(0.4)
		c.ToggleMute()
		assert.Equal(t, 0.0, out.Volume())
		assert.Equal(t, VolumeMuted, c.View().VolumeTier)

		c.ToggleMute()
		assert.InDelta(t, 0.4, out.Volume(), 1e-9)
	})

	t.Run("set volume while muted wins", func(t *testing.T) {
		out := newFakeOutput()
		c, _ := newTestController(t, out)

		c.SetVolume(0.8)
		c.ToggleMute()
		c.SetVolume(0.2)
		assert.InDelta(t, 0.2, out.Volume(), 1e-9)

		c.ToggleMute()
		c.ToggleMute()
		assert.InDelta(t, 0.2, out.Volume(), 1e-9)
	})

	t.Run("explicit zero stays muted", func(t *testing.T) {
		out := newFakeOutput()
		c, _ := newTestController(t, out)

		c.SetVolume(0)
		c.ToggleMute()
		assert.Equal(t, 0.0, out.Volume())
	})
}

func TestController_Seek(t *testing.T) {
	out := newFakeOutput()
	out.durations["/media/a.mp3"] = 200 * time.Second
	out.loadErrs["/media/b.mp3"] = errors.New("missing file")
	c, _ := newTestController(t, out)

	c.LoadTrack(makeTracks("a")[0])
	waitPlaying(t, c)

	c.Seek(0.25)
	assert.Equal(t, 50*time.Second, out.Position())

	c.Seek(1.5)
	assert.Equal(t, 200*time.Second, out.Position())

	v := c.View()
	assert.Equal(t, "3:20", v.Elapsed)
	assert.Equal(t, "3:20", v.Total)
	assert.InDelta(t, 1.0, v.Progress, 1e-9)

	// Unknown duration: seek is a no-op.
	c.LoadTrack(makeTracks("b")[0])
	out.SetPosition(7 * time.Second)
	c.Seek(0.5)
	assert.Equal(t, 7*time.Second, out.Position())
}

func TestController_PlayFailure(t *testing.T) {
	out := newFakeOutput()
	out.playErrs["/media/a.mp3"] = errDecode
	c, rec := newTestController(t, out)

	tracks := makeTracks("a", "b")
	require.NoError(t, c.LoadQueue(tracks, 0))

	require.Eventually(t, func() bool { return rec.count(EventError) == 1 }, time.Second, time.Millisecond)
	settle(c)

	errs := rec.ofType(EventError)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0].Err, ErrLoadFailed))
	assert.True(t, errors.Is(errs[0].Err, errDecode))
	assert.Equal(t, StateError, errs[0].State)

	assert.Equal(t, StatePaused, c.State())
	assert.False(t, c.IsPlaying())
	cur, ok := c.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
	assert.Equal(t, 2, c.Queue().Len())

	// A later retry on the same track is a playback failure.
	c.Play()
	require.Eventually(t, func() bool { return rec.count(EventError) == 2 }, time.Second, time.Millisecond)
	errs = rec.ofType(EventError)
	assert.True(t, errors.Is(errs[1].Err, ErrPlaybackFailed))
	assert.Equal(t, StatePaused, c.State())
}

func TestController_LoadFailure(t *testing.T) {
	out := newFakeOutput()
	out.loadErrs["/media/a.mp3"] = errors.New("no such file")
	c, rec := newTestController(t, out)

	c.LoadTrack(makeTracks("a")[0])

	assert.Equal(t, StatePaused, c.State())
	assert.False(t, c.IsPlaying())
	assert.Equal(t, 0, out.playCount(), "an unbound source is never played")

	require.Eventually(t, func() bool { return rec.count(EventError) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, rec.count(EventTrackChanged))
	assert.True(t, errors.Is(rec.ofType(EventError)[0].Err, ErrLoadFailed))
}

func TestController_OnMediaError(t *testing.T) {
	out := newFakeOutput()
	c, rec := newTestController(t, out)

	require.NoError(t, c.LoadQueue(makeTracks("a", "b", "c"), 1))
	waitPlaying(t, c)

	c.OnMediaError(errors.New("network dropped"))

	assert.False(t, c.IsPlaying())
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, 1, c.Queue().CurrentIndex)
	assert.Equal(t, 3, c.Queue().Len())

	require.Eventually(t, func() bool { return rec.count(EventError) == 1 }, time.Second, time.Millisecond)
	assert.True(t, errors.Is(rec.ofType(EventError)[0].Err, ErrMediaRuntime))

	// The user may retry.
	c.Play()
	waitPlaying(t, c)
}

func TestController_SupersededLoad(t *testing.T) {
	orders := []struct {
		name        string
		firstResult error
		newerFirst  bool
	}{
		{name: "older succeeds after newer", firstResult: nil, newerFirst: true},
		{name: "older fails after newer", firstResult: errDecode, newerFirst: true},
		{name: "older succeeds before newer", firstResult: nil, newerFirst: false},
		{name: "older fails before newer", firstResult: errDecode, newerFirst: false},
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			out := newFakeOutput()
			gateB := out.gate("/media/B.mp3")
			gateD := out.gate("/media/D.mp3")
			c, rec := newTestController(t, out)

			require.NoError(t, c.LoadQueue(makeTracks("A", "B", "C"), 1))
			require.Eventually(t, func() bool { return out.playCount() == 1 }, time.Second, time.Millisecond)
			require.NoError(t, c.LoadQueue(makeTracks("D"), 0))
			require.Eventually(t, func() bool { return out.playCount() == 2 }, time.Second, time.Millisecond)

			if tt.newerFirst {
				gateD <- nil
				waitPlaying(t, c)
				gateB <- tt.firstResult
			} else {
				gateB <- tt.firstResult
				gateD <- nil
			}
			settle(c)

			cur, ok := c.CurrentTrack()
			require.True(t, ok)
			assert.Equal(t, "D", cur.ID)
			assert.Equal(t, []string{"D"}, track.IDs(c.Queue().Tracks))
			assert.True(t, c.IsPlaying())
			assert.Equal(t, StatePlaying, c.State())
			assert.Equal(t, 0, rec.count(EventError), "superseded results never reach the user")

			out.mu.Lock()
			defer out.mu.Unlock()
			assert.Equal(t, "/media/D.mp3", out.url)
			assert.True(t, out.playing)
		})
	}
}

func TestController_PauseSupersedesPendingPlay(t *testing.T) {
	out := newFakeOutput()
	gate := out.gate("/media/a.mp3")
	c, rec := newTestController(t, out)

	c.LoadTrack(makeTracks("a")[0])
	c.Pause()
	gate <- nil
	settle(c)

	assert.False(t, c.IsPlaying())
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, 0, rec.count(EventError))

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.False(t, out.playing, "output must follow the controller into paused")
}

func TestController_RepeatOneReplayIsPausedUntilConfirmed(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	for c.RepeatMode() != RepeatOne {
		c.CycleRepeatMode()
	}
	c.LoadTrack(makeTracks("a")[0])
	waitPlaying(t, c)

	gate := out.gate("/media/a.mp3")
	c.OnTrackEnded()

	v := c.View()
	assert.False(t, v.Playing)
	assert.Equal(t, StatePaused, v.State)

	gate <- nil
	waitPlaying(t, c)
	assert.Equal(t, StatePlaying, c.State())
}

func TestController_TogglePlayPause(t *testing.T) {
	out := newFakeOutput()
	c, _ := newTestController(t, out)

	c.LoadTrack(makeTracks("a")[0])
	waitPlaying(t, c)

	c.TogglePlayPause()
	assert.False(t, c.IsPlaying())
	assert.Equal(t, StatePaused, c.State())

	c.TogglePlayPause()
	waitPlaying(t, c)
	assert.Equal(t, StatePlaying, c.State())

	// Play is idempotent while playing.
	plays := out.playCount()
	c.Play()
	assert.Equal(t, plays, out.playCount())
}

func TestController_Run(t *testing.T) {
	out := newFakeOutput()
	c, rec := newTestController(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	require.NoError(t, c.LoadQueue(makeTracks("a", "b"), 0))
	waitPlaying(t, c)

	out.events <- MediaEvent{Type: MediaEnded}
	require.Eventually(t, func() bool { return c.Queue().CurrentIndex == 1 }, time.Second, time.Millisecond)

	out.events <- MediaEvent{Type: MediaError, Err: errDecode}
	require.Eventually(t, func() bool { return rec.count(EventError) == 1 }, time.Second, time.Millisecond)

	c.Close()
	<-done
}
