package feedstore

import (
	"context"
	"sync"
	"time"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// StoryStore persists the story collection. Reads filter to active stories
// (younger than StoryActiveWindow); expired stories stay in storage.
type StoryStore struct {
	mu  sync.Mutex
	kv  localstore.KV
	lat Latencies
}

// NewStoryStore constructs the store, seeding from fixtures when absent.
// Seeding is synchronous: an async import racing the presence check could
// double-seed.
func NewStoryStore(kv localstore.KV, opts Options) *StoryStore {
	s := &StoryStore{kv: kv, lat: opts.Latencies}
	if !opts.SkipSeed {
		seedCollection[Story](kv, KeyStories, fixtureStories)
	}
	return s
}

// StoryDraft carries caller-supplied fields for Create.
// Type defaults to image, UserID to 1, Timestamp to now.
type StoryDraft struct {
	UserID    int
	Content   string
	Type      StoryType
	Timestamp time.Time
}

// GetAll returns all active stories in storage order.
func (s *StoryStore) GetAll(ctx context.Context) ([]Story, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}
	return s.active()
}

// GetByID returns one story regardless of its active state, or ErrNotFound.
func (s *StoryStore) GetByID(ctx context.Context, id int) (Story, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return Story{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stories, err := loadCollection[Story](s.kv, KeyStories)
	if err != nil {
		return Story{}, err
	}
	for _, st := range stories {
		if st.ID == id {
			return st, nil
		}
	}
	return Story{}, notFoundErr("story", id)
}

// Create appends a new story with the next monotonic ID.
func (s *StoryStore) Create(ctx context.Context, draft StoryDraft) (Story, error) {
	if err := delay(ctx, s.lat.Write); err != nil {
		return Story{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stories, err := loadCollection[Story](s.kv, KeyStories)
	if err != nil {
		return Story{}, err
	}

	ids := make([]int, len(stories))
	for i, st := range stories {
		ids[i] = st.ID
	}

	story := Story{
		ID:        nextID(ids),
		UserID:    draft.UserID,
		Content:   draft.Content,
		Type:      draft.Type,
		Timestamp: draft.Timestamp,
		Viewed:    false,
	}
	if story.UserID == 0 {
		story.UserID = 1
	}
	if story.Type == "" {
		story.Type = StoryImage
	}
	if story.Timestamp.IsZero() {
		story.Timestamp = time.Now().UTC()
	}

	stories = append(stories, story)
	if err := saveCollection(s.kv, KeyStories, stories); err != nil {
		return Story{}, err
	}

	logging.Store("story created: id=%d user=%d type=%s", story.ID, story.UserID, story.Type)
	return story, nil
}

// MarkAsViewed sets the viewed flag. Marking an already-viewed story is a
// persisting no-op; an absent ID is ErrNotFound.
func (s *StoryStore) MarkAsViewed(ctx context.Context, id int) (Story, error) {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return Story{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stories, err := loadCollection[Story](s.kv, KeyStories)
	if err != nil {
		return Story{}, err
	}

	for i := range stories {
		if stories[i].ID == id {
			stories[i].Viewed = true
			if err := saveCollection(s.kv, KeyStories, stories); err != nil {
				return Story{}, err
			}
			logging.StoreDebug("story %d marked viewed", id)
			return stories[i], nil
		}
	}
	return Story{}, notFoundErr("story", id)
}

// UserStories returns the user's active stories in storage order.
func (s *StoryStore) UserStories(ctx context.Context, userID int) ([]Story, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	stories, err := s.active()
	if err != nil {
		return nil, err
	}

	out := []Story{}
	for _, st := range stories {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out, nil
}

// ActiveByUser groups all active stories by user ID, each group in storage
// order. This is the carousel input.
func (s *StoryStore) ActiveByUser(ctx context.Context) (map[int][]Story, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	stories, err := s.active()
	if err != nil {
		return nil, err
	}

	grouped := make(map[int][]Story)
	for _, st := range stories {
		grouped[st.UserID] = append(grouped[st.UserID], st)
	}
	return grouped, nil
}

// active loads the collection and filters to active stories, preserving
// storage order.
func (s *StoryStore) active() ([]Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stories, err := loadCollection[Story](s.kv, KeyStories)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := []Story{}
	for _, st := range stories {
		if st.Active(now) {
			out = append(out, st)
		}
	}
	return out, nil
}
