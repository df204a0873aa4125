package feedstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapgrid/internal/localstore"
)

func TestStoryActiveWindow(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"fresh", 5 * time.Minute, true},
		{"almost expired", 23 * time.Hour, true},
		{"expired", 25 * time.Hour, false},
		{"exactly at the boundary", 24 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Story{Timestamp: now.Add(-tc.age)}
			assert.Equal(t, tc.want, st.Active(now))
		})
	}
}

func TestStoryGetAllFiltersExpired(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	now := time.Now().UTC()
	require.NoError(t, saveCollection(kv, KeyStories, []Story{
		{ID: 1, UserID: 2, Content: "old", Timestamp: now.Add(-25 * time.Hour)},
		{ID: 2, UserID: 2, Content: "fresh", Timestamp: now.Add(-23 * time.Hour)},
	}))
	s := Open(kv, Options{SkipSeed: true})

	active, err := s.Stories.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].ID)

	// Expired stories stay in storage and remain addressable by ID.
	expired, err := s.Stories.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "old", expired.Content)
}

func TestStoryCreateDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	story, err := s.Stories.Create(ctx, StoryDraft{Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, story.ID)
	assert.Equal(t, 1, story.UserID)
	assert.Equal(t, StoryImage, story.Type, "type defaults to image")
	assert.False(t, story.Viewed)
	assert.False(t, story.Timestamp.IsZero())
}

func TestMarkAsViewed(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	story, err := s.Stories.Create(ctx, StoryDraft{Content: "watch me", Type: StoryText})
	require.NoError(t, err)

	viewed, err := s.Stories.MarkAsViewed(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, viewed.Viewed)

	// Idempotent on re-mark.
	again, err := s.Stories.MarkAsViewed(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, again.Viewed)

	_, err = s.Stories.MarkAsViewed(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for absent story, got %v", err)
	}
}

func TestActiveByUserGroupsInStorageOrder(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	now := time.Now().UTC()
	require.NoError(t, saveCollection(kv, KeyStories, []Story{
		{ID: 1, UserID: 4, Content: "a", Timestamp: now},
		{ID: 2, UserID: 2, Content: "b", Timestamp: now},
		{ID: 3, UserID: 4, Content: "c", Timestamp: now},
		{ID: 4, UserID: 9, Content: "expired", Timestamp: now.Add(-30 * time.Hour)},
	}))
	s := Open(kv, Options{SkipSeed: true})

	grouped, err := s.Stories.ActiveByUser(ctx)
	require.NoError(t, err)

	require.Len(t, grouped, 2)
	assert.Len(t, grouped[2], 1)
	require.Len(t, grouped[4], 2)
	assert.Equal(t, 1, grouped[4][0].ID)
	assert.Equal(t, 3, grouped[4][1].ID)
	assert.NotContains(t, grouped, 9, "expired stories never reach the carousel")
}

func TestUserStories(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	_, err := s.Stories.Create(ctx, StoryDraft{UserID: 3, Content: "theirs"})
	require.NoError(t, err)
	_, err = s.Stories.Create(ctx, StoryDraft{UserID: 5, Content: "mine"})
	require.NoError(t, err)

	mine, err := s.Stories.UserStories(ctx, 5)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Content)
}
