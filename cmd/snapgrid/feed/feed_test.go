package feed

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapgrid/internal/config"
	"snapgrid/internal/feedstore"
	"snapgrid/internal/localstore"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	stores := feedstore.Open(localstore.NewMemory(), feedstore.Options{SkipSeed: true})
	return New(cfg, stores, nil)
}

func TestSplitTags(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"go coding", []string{"go", "coding"}},
		{"#go, #coding", []string{"go", "coding"}},
		{"  spaced ,, tags  ", []string{"spaced", "tags"}},
		{"", []string{}},
		{"#", []string{}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, splitTags(tc.in)); diff != "" {
			t.Errorf("splitTags(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestTagQuery(t *testing.T) {
	tag, only := tagQuery("#sunset")
	assert.Equal(t, "sunset", tag)
	assert.True(t, only)

	tag, only = tagQuery("sunset")
	assert.Equal(t, "sunset", tag)
	assert.False(t, only)

	// A bare '#' is not a tag query.
	_, only = tagQuery("#")
	assert.False(t, only)
}

func TestMergePostsDeduplicates(t *testing.T) {
	a := []feedstore.Post{{ID: 1}, {ID: 2}}
	b := []feedstore.Post{{ID: 2}, {ID: 3}}

	got := mergePosts(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, 3, got[2].ID)
}

func TestRankTags(t *testing.T) {
	posts := []feedstore.Post{
		{ID: 1, Hashtags: []string{"go", "tui"}},
		{ID: 2, Hashtags: []string{"go"}},
		{ID: 3, Hashtags: []string{"art", "tui"}},
	}

	got := rankTags(posts)
	want := []tagCount{
		{Tag: "go", Count: 2},
		{Tag: "tui", Count: 2},
		{Tag: "art", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rankTags mismatch (-want +got):\n%s", diff)
	}
}

func TestDataLoadedBuildsCarousel(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(dataLoadedMsg{
		posts: []feedstore.Post{{ID: 1, UserID: 2, Caption: "hi"}},
		users: []feedstore.User{
			{ID: 1, Username: "you"},
			{ID: 2, Username: "friend"},
			{ID: 3, Username: "other"},
		},
		storiesBy: map[int][]feedstore.Story{
			2: {{ID: 10, UserID: 2, Viewed: true}},
			3: {{ID: 11, UserID: 3, Viewed: false}},
		},
		current: feedstore.User{ID: 1, Username: "you"},
	})
	got := updated.(Model)

	assert.False(t, got.loading)
	require.Len(t, got.carousel, 3)

	assert.True(t, got.carousel[0].IsSelf, "current user's slot comes first")
	assert.Equal(t, 3, got.carousel[1].User.ID, "unviewed rings before viewed ones")
	assert.False(t, got.carousel[1].AllViewed)
	assert.Equal(t, 2, got.carousel[2].User.ID)
	assert.True(t, got.carousel[2].AllViewed)
}

func TestDataLoadedErrorKeepsRetryState(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(dataLoadedMsg{err: assert.AnError})
	got := updated.(Model)

	assert.False(t, got.loading)
	assert.Error(t, got.loadErr)
	assert.Contains(t, got.View(), "couldn't load the feed")
}

func TestOptimisticLikeRevertsOnError(t *testing.T) {
	m := newTestModel(t)
	m.posts = []feedstore.Post{{ID: 1, UserID: 2, Likes: 0}}
	m.usersByID = map[int]feedstore.User{2: {ID: 2, Username: "friend"}}

	// Optimistic bump.
	updated, cmd := m.toggleCursorPost(true)
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.posts[0].Likes)

	// Store says no: revert to the pre-toggle snapshot.
	updated, _ = m.Update(postMutatedMsg{
		prev: feedstore.Post{ID: 1, UserID: 2, Likes: 0},
		err:  assert.AnError,
	})
	m = updated.(Model)
	assert.Equal(t, 0, m.posts[0].Likes)
	assert.NotEmpty(t, m.notice)
}

func TestPostDeletedAdjustsCursor(t *testing.T) {
	m := newTestModel(t)
	m.posts = []feedstore.Post{{ID: 1}, {ID: 2}}
	m.postCursor = 1

	updated, _ := m.Update(postDeletedMsg{id: 2})
	got := updated.(Model)

	require.Len(t, got.posts, 1)
	assert.Equal(t, 0, got.postCursor)
}

func TestStaleSearchResultsAreDropped(t *testing.T) {
	m := newTestModel(t)
	m.searchInput.SetValue("fresh")

	updated, _ := m.Update(searchResultsMsg{
		query: "stale",
		posts: []feedstore.Post{{ID: 99}},
	})
	got := updated.(Model)
	assert.Empty(t, got.searchPosts, "results for an abandoned query are ignored")
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t)
	m.loading = false

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t)
	m.loading = false

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	got := updated.(Model)
	assert.True(t, got.showHelp)

	updated, _ = got.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	got = updated.(Model)
	assert.False(t, got.showHelp)
}

func TestViewerProgressBarSegments(t *testing.T) {
	m := newTestModel(t)
	v := &viewerModel{prog: progress.New(progress.WithoutPercentage())}
	bar := v.progressBar(1, 3, 50, 30, m.styles.StoryRing, m.styles.Muted)
	assert.NotEmpty(t, bar)
}

func TestManualNextSupersedesTickChain(t *testing.T) {
	// tea.Tick one-shots can't be cancelled, so a manual Next while Playing
	// leaves the old chain's tick in flight. Bumping the generation must kill
	// that chain: its tick neither advances progress nor re-arms, and only
	// the new chain keeps the calibrated rate.
	m := newTestModel(t)
	m.loading = false

	stories := []feedstore.Story{
		{ID: 1, UserID: 2, Content: "a"},
		{ID: 2, UserID: 2, Content: "b"},
	}
	v, cmd := m.openViewer(carouselEntry{User: feedstore.User{ID: 2}, Stories: stories})
	require.NotNil(t, v)
	require.NotNil(t, cmd)
	m.viewer = v
	defer v.ctrl.Close()

	updated, navCmd := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = updated.(Model)
	require.NotNil(t, navCmd, "manual navigation starts a fresh chain")
	assert.Equal(t, 1, v.tickGen)
	assert.Equal(t, 1, v.ctrl.Index())

	// The superseded chain's leftover tick is dropped cold.
	updated, staleCmd := m.Update(playbackTickMsg{gen: 0})
	m = updated.(Model)
	assert.Nil(t, staleCmd, "a stale-generation tick must not re-arm")
	assert.Equal(t, 0.0, v.ctrl.Progress())

	// The current chain advances exactly one increment.
	updated, liveCmd := m.Update(playbackTickMsg{gen: v.tickGen})
	m = updated.(Model)
	require.NotNil(t, liveCmd)
	assert.InDelta(t, 2.0, m.viewer.ctrl.Progress(), 0.001)
}

func TestResumeSupersedesPausedChain(t *testing.T) {
	m := newTestModel(t)
	m.loading = false

	v, cmd := m.openViewer(carouselEntry{
		User:    feedstore.User{ID: 2},
		Stories: []feedstore.Story{{ID: 1, UserID: 2, Content: "a"}},
	})
	require.NotNil(t, v)
	require.NotNil(t, cmd)
	m.viewer = v
	defer v.ctrl.Close()

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = updated.(Model)
	require.True(t, v.paused)

	updated, resumeCmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = updated.(Model)
	require.NotNil(t, resumeCmd)
	assert.Equal(t, 1, v.tickGen, "resume starts a fresh chain")

	// A tick from before the pause arrives late: dropped.
	_, staleCmd := m.Update(playbackTickMsg{gen: 0})
	assert.Nil(t, staleCmd)
	assert.Equal(t, 0.0, v.ctrl.Progress())
}

func TestSearchCursorClampedToResults(t *testing.T) {
	m := newTestModel(t)
	m.loading = false
	m.page = PageSearch
	m.searchTab = TabTags
	m.searchTags = []tagCount{{Tag: "go", Count: 2}, {Tag: "art", Count: 1}}

	for i := 0; i < 5; i++ {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
		m = updated.(Model)
	}
	assert.Equal(t, 1, m.searchCursor, "cursor stops on the last row")

	// An empty tab pins the cursor at zero.
	m.searchTab = TabUsers
	m.searchCursor = 0
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = updated.(Model)
	assert.Equal(t, 0, m.searchCursor)
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	got := truncate(strings.Repeat("é", 80), 60)
	assert.True(t, utf8.ValidString(got), "must never cut a rune in half")
	assert.Equal(t, 60, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}
