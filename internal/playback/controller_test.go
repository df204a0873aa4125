package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"snapgrid/internal/feedstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingMarker captures MarkAsViewed calls in order. A non-zero delay
// keeps the worker busy so Close overlaps an in-flight mark.
type recordingMarker struct {
	mu    sync.Mutex
	ids   []int
	fail  bool
	calls int
	delay time.Duration
}

func (r *recordingMarker) MarkAsViewed(ctx context.Context, id int) (feedstore.Story, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return feedstore.Story{}, errors.New("storage offline")
	}
	r.ids = append(r.ids, id)
	return feedstore.Story{ID: id, Viewed: true}, nil
}

func (r *recordingMarker) viewed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ids...)
}

func threeStories() []feedstore.Story {
	now := time.Now()
	return []feedstore.Story{
		{ID: 11, UserID: 2, Content: "one", Timestamp: now},
		{ID: 12, UserID: 2, Content: "two", Timestamp: now},
		{ID: 13, UserID: 2, Content: "three", Timestamp: now},
	}
}

// newTestController calibrates 10 ticks per story (increment 10).
func newTestController(marker ViewMarker) *Controller {
	return New(marker, 1000*time.Millisecond, 100*time.Millisecond)
}

func TestOpenTransitionsIdleToPlaying(t *testing.T) {
	marker := &recordingMarker{}
	c := newTestController(marker)
	defer c.Close()

	assert.Equal(t, StateIdle, c.State())
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	assert.Equal(t, StatePlaying, c.State())
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, 0.0, c.Progress())
	assert.NotEmpty(t, c.SessionID())
}

func TestOpenRejectsEmptyAndReopen(t *testing.T) {
	c := newTestController(&recordingMarker{})
	defer c.Close()

	assert.False(t, c.Open(feedstore.User{}, nil), "no stories, no session")
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))
	assert.False(t, c.Open(feedstore.User{ID: 2}, threeStories()), "already playing")
}

func TestTickAdvancesAndResetsProgress(t *testing.T) {
	c := newTestController(&recordingMarker{})
	defer c.Close()
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	for i := 0; i < 9; i++ {
		assert.Equal(t, StatePlaying, c.Tick())
	}
	assert.Equal(t, 0, c.Index(), "nine ticks stay on the first story")
	assert.InDelta(t, 90, c.Progress(), 0.001)

	assert.Equal(t, StatePlaying, c.Tick())
	assert.Equal(t, 1, c.Index(), "tenth tick advances")
	assert.Equal(t, 0.0, c.Progress(), "progress resets on advance")
}

func TestTickClosesAfterLastStory(t *testing.T) {
	c := newTestController(&recordingMarker{})
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	// 3 stories x 10 ticks; the final tick closes the session.
	var state State
	for i := 0; i < 30; i++ {
		state = c.Tick()
	}
	assert.Equal(t, StateClosed, state)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 2, c.Index(), "cursor stays on the last story")

	// Ticking a closed session is inert.
	assert.Equal(t, StateClosed, c.Tick())
}

func TestPauseFreezesProgressAndResumeContinues(t *testing.T) {
	c := newTestController(&recordingMarker{})
	defer c.Close()
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	c.Tick()
	c.Tick()
	before := c.Progress()

	c.Pause()
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, StatePaused, c.Tick(), "ticks while paused don't move progress")
	assert.Equal(t, before, c.Progress())

	// Re-entrant: pausing a paused machine and resuming a playing one are
	// both no-ops.
	c.Pause()
	c.Resume()
	assert.Equal(t, StatePlaying, c.State())
	c.Resume()
	assert.Equal(t, StatePlaying, c.State())

	c.Tick()
	assert.Greater(t, c.Progress(), before, "resume continues, never restarts")
}

func TestNextAndPreviousNavigation(t *testing.T) {
	c := newTestController(&recordingMarker{})
	defer c.Close()
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	c.Tick()
	c.Tick()

	assert.Equal(t, StatePlaying, c.Next())
	assert.Equal(t, 1, c.Index())
	assert.Equal(t, 0.0, c.Progress())

	c.Previous()
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, 0.0, c.Progress())

	c.Previous()
	assert.Equal(t, 0, c.Index(), "previous at the first story is a no-op")
}

func TestNextOnLastStoryCloses(t *testing.T) {
	c := newTestController(&recordingMarker{})
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	assert.Equal(t, StatePlaying, c.Next())
	assert.Equal(t, StatePlaying, c.Next())
	assert.Equal(t, StateClosed, c.Next())
	assert.Equal(t, StateClosed, c.State())
}

func TestViewMarkingFollowsVisitingOrderOnce(t *testing.T) {
	marker := &recordingMarker{}
	c := newTestController(marker)
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	c.Next()     // 11 viewed on open, now on 12
	c.Previous() // back to 11: already viewed, no re-fire
	c.Next()     // 12 again: already viewed
	c.Next()     // 13
	c.Next()     // past the end, closes

	// Close joined the worker, so the recording is complete.
	assert.Equal(t, []int{11, 12, 13}, marker.viewed())
}

func TestViewMarkerFailuresAreSwallowed(t *testing.T) {
	marker := &recordingMarker{fail: true}
	c := newTestController(marker)
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	assert.Equal(t, StatePlaying, c.Next())
	assert.Equal(t, StatePlaying, c.Next())
	c.Close()

	marker.mu.Lock()
	calls := marker.calls
	marker.mu.Unlock()
	assert.Equal(t, 3, calls, "every story was attempted despite failures")
}

func TestNilMarkerIsTolerated(t *testing.T) {
	c := newTestController(nil)
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))
	c.Next()
	c.Close()
}

func TestCloseIsIdempotentAndJoinsWorker(t *testing.T) {
	marker := &recordingMarker{}
	c := newTestController(marker)
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))

	c.Close()
	c.Close()
	assert.Equal(t, StateClosed, c.State())

	// Navigation after close is inert.
	assert.Equal(t, StateClosed, c.Next())
	c.Previous()
	c.Pause()
	c.Resume()
	assert.Equal(t, StateClosed, c.State())
}

func TestCloseJoinsBusyWorker(t *testing.T) {
	// Close must return even when it lands while the worker is mid-mark.
	// The worker ranges over the channel it was handed at spawn time; if it
	// reread the controller field instead, Close nilling that field would
	// park it on a nil channel and the join would never return.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			marker := &recordingMarker{delay: 2 * time.Millisecond}
			c := newTestController(marker)
			if !c.Open(feedstore.User{ID: 2}, threeStories()) {
				t.Error("open failed")
				return
			}
			c.Next()
			c.Close()
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Close deadlocked against the view worker")
	}
}

func TestCurrentReflectsCursor(t *testing.T) {
	c := newTestController(&recordingMarker{})
	defer c.Close()

	_, ok := c.Current()
	assert.False(t, ok, "idle machine has no current story")

	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()))
	st, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 11, st.ID)

	c.Next()
	st, _ = c.Current()
	assert.Equal(t, 12, st.ID)
	assert.Equal(t, 3, c.Len())
}

func TestIncrementCalibration(t *testing.T) {
	// 5s story at 100ms ticks: 50 ticks to completion.
	c := New(nil, 5*time.Second, 100*time.Millisecond)
	require.True(t, c.Open(feedstore.User{ID: 2}, threeStories()[:1]))

	for i := 0; i < 49; i++ {
		require.Equal(t, StatePlaying, c.Tick())
	}
	assert.Equal(t, StateClosed, c.Tick(), "50th tick completes the single story")
}
