package feedstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapgrid/internal/localstore"
)

func TestNextID(t *testing.T) {
	cases := []struct {
		name string
		ids  []int
		want int
	}{
		{"empty", nil, 1},
		{"sequential", []int{1, 2, 3}, 4},
		{"gapped", []int{1, 7, 3}, 8},
		{"single", []int{42}, 43},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nextID(tc.ids); got != tc.want {
				t.Errorf("nextID(%v) = %d, want %d", tc.ids, got, tc.want)
			}
		})
	}
}

func TestMalformedBlobRecoversAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(KeyPosts, []byte("{not json at all")))
	s := Open(kv, Options{SkipSeed: true})

	posts, err := s.Posts.GetAll(ctx)
	require.NoError(t, err, "corruption is recovered, not surfaced")
	assert.Empty(t, posts)

	// The store stays usable: the next write starts the collection over.
	post, err := s.Posts.Create(ctx, PostDraft{Caption: "fresh start"})
	require.NoError(t, err)
	assert.Equal(t, 1, post.ID)
}

func TestSeedPopulatesAbsentCollections(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	s := Open(kv, Options{})

	posts, err := s.Posts.GetAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, posts)

	users, err := s.Users.GetAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, users)

	stories, err := s.Stories.GetAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, stories, "fixture stories are rebased into the active window")

	assert.Equal(t, 1, s.Users.CurrentUserID())
}

func TestSeedDoesNotOverwriteExistingData(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, saveCollection(kv, KeyPosts, []Post{
		{ID: 50, UserID: 1, Caption: "mine, hands off"},
	}))

	s := Open(kv, Options{})

	posts, err := s.Posts.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 50, posts[0].ID)
}

func TestSeedIsIdempotentAcrossReopens(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()

	first := Open(kv, Options{})
	posts, err := first.Posts.GetAll(ctx)
	require.NoError(t, err)
	count := len(posts)

	// Reopening over the same storage must not re-seed or duplicate.
	second := Open(kv, Options{})
	posts, err = second.Posts.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, count)
}

// TestCreateSurvivesReopen is the persistence round-trip the whole app leans
// on: write through one store instance, read through a fresh one.
func TestCreateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()

	writer := Open(kv, Options{SkipSeed: true})
	created, err := writer.Posts.Create(ctx, PostDraft{Caption: "durable"})
	require.NoError(t, err)

	reader := Open(kv, Options{SkipSeed: true})
	got, err := reader.Posts.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Caption)
}
