// Package playback implements the story viewer state machine: timed
// auto-advance through one user's story list, manual navigation, re-entrant
// pause, and view tracking. The controller is a pure machine - whoever opens
// a session owns the tick cadence (the TUI schedules ticks only while the
// machine is Playing), so no timer can outlive a closed viewer.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapgrid/internal/feedstore"
	"snapgrid/internal/logging"
)

// State is the playback machine state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ViewMarker is the persistence hook for view tracking. Failures are
// swallowed: marking a story viewed must never interrupt playback.
type ViewMarker interface {
	MarkAsViewed(ctx context.Context, id int) (feedstore.Story, error)
}

// Controller drives one viewing session. Construct with New, start with
// Open, feed Tick on a fixed cadence while Playing, and always Close when
// the viewer goes away.
type Controller struct {
	mu        sync.Mutex
	state     State
	sessionID string
	user      feedstore.User
	stories   []feedstore.Story
	index     int
	progress  float64
	increment float64 // progress units added per tick

	marker    ViewMarker
	viewQueue chan int
	workerWG  sync.WaitGroup
}

// New creates an idle controller. duration is the full-progress span per
// story, tick the cadence Tick will be called at; together they calibrate
// the per-tick increment so progress reaches 100 after duration.
func New(marker ViewMarker, duration, tick time.Duration) *Controller {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	if tick <= 0 || tick > duration {
		tick = 100 * time.Millisecond
	}
	return &Controller{
		state:     StateIdle,
		marker:    marker,
		increment: 100 / (float64(duration) / float64(tick)),
	}
}

// Open starts a session over the user's stories: Idle -> Playing(0, 0).
// Opening with no stories or from a non-idle state is a no-op returning false.
func (c *Controller) Open(user feedstore.User, stories []feedstore.Story) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle || len(stories) == 0 {
		return false
	}

	c.sessionID = uuid.NewString()
	c.user = user
	c.stories = make([]feedstore.Story, len(stories))
	copy(c.stories, stories)
	c.index = 0
	c.progress = 0
	c.state = StatePlaying

	c.viewQueue = make(chan int, len(stories))
	c.workerWG.Add(1)
	go c.viewWorker(c.viewQueue)

	logging.Playback("session %s opened: user=%d stories=%d", c.sessionID, user.ID, len(stories))
	c.dispatchViewLocked()
	return true
}

// Tick advances progress by one increment. Only Playing sessions move; a
// story completing its span advances to the next story with progress reset,
// and completing the last story closes the session.
func (c *Controller) Tick() State {
	c.mu.Lock()

	if c.state != StatePlaying {
		state := c.state
		c.mu.Unlock()
		return state
	}

	c.progress += c.increment
	if c.progress < 100 {
		c.mu.Unlock()
		return StatePlaying
	}

	if c.index < len(c.stories)-1 {
		c.index++
		c.progress = 0
		c.dispatchViewLocked()
		c.mu.Unlock()
		return StatePlaying
	}

	c.progress = 100
	return c.closeLocked() // unlocks
}

// Pause suspends auto-advance: Playing -> Paused, same index and progress.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying {
		c.state = StatePaused
	}
}

// Resume continues from the current progress: Paused -> Playing. Progress is
// never reset here - hovering must not restart a story.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePaused {
		c.state = StatePlaying
	}
}

// Next jumps to the following story with progress zeroed, or closes the
// session when already on the last story.
func (c *Controller) Next() State {
	c.mu.Lock()

	if c.state != StatePlaying && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return state
	}

	if c.index >= len(c.stories)-1 {
		return c.closeLocked() // unlocks
	}

	c.index++
	c.progress = 0
	c.state = StatePlaying
	c.dispatchViewLocked()
	c.mu.Unlock()
	return StatePlaying
}

// Previous jumps to the preceding story with progress zeroed; a no-op at
// index 0.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying && c.state != StatePaused {
		return
	}
	if c.index == 0 {
		return
	}

	c.index--
	c.progress = 0
	c.state = StatePlaying
	c.dispatchViewLocked()
}

// Close terminates the session from any state and waits for the view worker
// to drain. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
}

// closeLocked transitions to Closed, releases the lock and joins the worker.
// Callers must hold c.mu.
func (c *Controller) closeLocked() State {
	c.state = StateClosed
	queue := c.viewQueue
	c.viewQueue = nil
	logging.Playback("session %s closed at index %d", c.sessionID, c.index)
	c.mu.Unlock()

	if queue != nil {
		close(queue)
		c.workerWG.Wait()
	}
	return StateClosed
}

// dispatchViewLocked enqueues a markAsViewed for the current story if it has
// not been viewed yet, flipping the local flag so revisiting via Previous
// never re-fires. Callers must hold c.mu.
func (c *Controller) dispatchViewLocked() {
	st := &c.stories[c.index]
	if st.Viewed || c.viewQueue == nil {
		return
	}
	st.Viewed = true
	select {
	case c.viewQueue <- st.ID:
	default:
		// Queue full can only happen if the same ID were dispatched twice,
		// which the Viewed flag rules out; dropping is still safe.
	}
}

// viewWorker persists view marks in visiting order. Errors are logged and
// dropped - view tracking is best-effort and must not surface to the viewer.
// The queue is passed in at spawn time: closeLocked nils the field under the
// lock, so the worker must never reread it.
func (c *Controller) viewWorker(queue <-chan int) {
	defer c.workerWG.Done()
	for id := range queue {
		if c.marker == nil {
			continue
		}
		if _, err := c.marker.MarkAsViewed(context.Background(), id); err != nil {
			logging.PlaybackDebug("markAsViewed(%d) failed, ignoring: %v", id, err)
		}
	}
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Index returns the current story index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Progress returns the current story's progress in [0, 100].
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress > 100 {
		return 100
	}
	return c.progress
}

// Current returns the story under the cursor.
func (c *Controller) Current() (feedstore.Story, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || len(c.stories) == 0 {
		return feedstore.Story{}, false
	}
	return c.stories[c.index], true
}

// User returns the session's story author.
func (c *Controller) User() feedstore.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Len returns the number of stories in the session.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stories)
}

// SessionID identifies this viewing session in logs.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}
