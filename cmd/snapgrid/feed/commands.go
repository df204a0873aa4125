package feed

import (
	"context"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"snapgrid/internal/feedstore"
)

// ============================================================================
// MESSAGES
// ============================================================================

// dataLoadedMsg carries the result of the initial (or refresh) load. Users,
// stories and posts land together so the feed never renders half a world.
type dataLoadedMsg struct {
	posts     []feedstore.Post
	users     []feedstore.User
	storiesBy map[int][]feedstore.Story
	current   feedstore.User
	err       error
}

// postMutatedMsg carries the authoritative post after a toggle or edit. On
// error the feed reverts its optimistic copy to prev.
type postMutatedMsg struct {
	post feedstore.Post
	prev feedstore.Post
	err  error
}

type postCreatedMsg struct {
	post feedstore.Post
	err  error
}

type postDeletedMsg struct {
	id  int
	err error
}

type commentsLoadedMsg struct {
	postID   int
	comments []feedstore.Comment
	err      error
}

type commentAddedMsg struct {
	comment feedstore.Comment
	err     error
}

type profileSavedMsg struct {
	user feedstore.User
	err  error
}

type storyPostedMsg struct {
	story feedstore.Story
	err   error
}

type searchResultsMsg struct {
	query string
	posts []feedstore.Post
	users []feedstore.User
	tags  []tagCount
	err   error
}

type savedLoadedMsg struct {
	posts []feedstore.Post
	err   error
}

// playbackTickMsg drives the story viewer. Scheduled only while the
// controller is Playing; gen identifies the tick chain that scheduled it, so
// a chain superseded by manual navigation dies when its next tick lands.
type playbackTickMsg struct{ gen int }

// storageChangedMsg fires when another process touched the storage file.
type storageChangedMsg struct{}

// clearNoticeMsg expires the transient notice; seq guards against a stale
// timer clearing a newer notice.
type clearNoticeMsg struct{ seq int }

// storeTimeout bounds every store round-trip issued by the UI. Generous next
// to the artificial latency tiers, tight enough that a wedged backend
// surfaces as an error instead of a hang.
const storeTimeout = 10 * time.Second

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// ============================================================================
// COMMANDS
// ============================================================================

// loadAllCmd fetches users, active stories and posts concurrently. Posts,
// users and stories are all required: any failure fails the load and the UI
// offers a retry.
func (m Model) loadAllCmd() tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()

		var (
			posts     []feedstore.Post
			users     []feedstore.User
			storiesBy map[int][]feedstore.Story
			current   feedstore.User
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			posts, err = stores.Posts.GetAll(gctx)
			return err
		})
		g.Go(func() (err error) {
			users, err = stores.Users.GetAll(gctx)
			return err
		})
		g.Go(func() (err error) {
			storiesBy, err = stores.Stories.ActiveByUser(gctx)
			return err
		})
		g.Go(func() (err error) {
			current, err = stores.Users.CurrentUser(gctx)
			return err
		})

		if err := g.Wait(); err != nil {
			return dataLoadedMsg{err: err}
		}
		return dataLoadedMsg{posts: posts, users: users, storiesBy: storiesBy, current: current}
	}
}

func (m Model) toggleLikeCmd(prev feedstore.Post) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		post, err := stores.Posts.ToggleLike(ctx, prev.ID)
		return postMutatedMsg{post: post, prev: prev, err: err}
	}
}

func (m Model) toggleSaveCmd(prev feedstore.Post) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		post, err := stores.Posts.ToggleSave(ctx, prev.ID)
		return postMutatedMsg{post: post, prev: prev, err: err}
	}
}

func (m Model) createPostCmd(draft feedstore.PostDraft) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		post, err := stores.Posts.Create(ctx, draft)
		return postCreatedMsg{post: post, err: err}
	}
}

func (m Model) deletePostCmd(id int) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		err := stores.Posts.Delete(ctx, id)
		return postDeletedMsg{id: id, err: err}
	}
}

func (m Model) loadCommentsCmd(postID int) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		comments, err := stores.Comments.GetByPostID(ctx, postID)
		return commentsLoadedMsg{postID: postID, comments: comments, err: err}
	}
}

func (m Model) addCommentCmd(draft feedstore.CommentDraft) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		comment, err := stores.Comments.Create(ctx, draft)
		return commentAddedMsg{comment: comment, err: err}
	}
}

func (m Model) saveProfileCmd(patch feedstore.UserPatch) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		user, err := stores.Users.UpdateProfile(ctx, patch)
		return profileSavedMsg{user: user, err: err}
	}
}

func (m Model) postStoryCmd(draft feedstore.StoryDraft) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		story, err := stores.Stories.Create(ctx, draft)
		return storyPostedMsg{story: story, err: err}
	}
}

func (m Model) loadSavedCmd() tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		posts, err := stores.Posts.Saved(ctx)
		return savedLoadedMsg{posts: posts, err: err}
	}
}

// searchCmd runs the three result sets in parallel. "#query" narrows posts to
// a hashtag match, anything else searches captions and hashtags both.
func (m Model) searchCmd(query string) tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()

		tag, tagOnly := tagQuery(query)

		var (
			posts []feedstore.Post
			users []feedstore.User
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			byTag, err := stores.Posts.SearchByHashtag(gctx, tag)
			if err != nil {
				return err
			}
			if tagOnly {
				posts = byTag
				return nil
			}
			byCaption, err := stores.Posts.SearchByCaption(gctx, query)
			if err != nil {
				return err
			}
			posts = mergePosts(byTag, byCaption)
			return nil
		})
		g.Go(func() (err error) {
			users, err = stores.Users.Search(gctx, query)
			return err
		})

		if err := g.Wait(); err != nil {
			return searchResultsMsg{query: query, err: err}
		}
		return searchResultsMsg{
			query: query,
			posts: posts,
			users: users,
			tags:  rankTags(posts),
		}
	}
}

// waitForStorageChange blocks on the watcher and re-subscribes after every
// delivery (the bubbletea channel-subscription pattern).
func (m Model) waitForStorageChange() tea.Cmd {
	changes := m.watcher.Changes()
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}

// noticeCmd schedules the notice expiry.
func noticeCmd(seq int) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

// ============================================================================
// HELPERS
// ============================================================================

func tagQuery(query string) (string, bool) {
	if len(query) > 1 && query[0] == '#' {
		return query[1:], true
	}
	return query, false
}

func mergePosts(a, b []feedstore.Post) []feedstore.Post {
	seen := make(map[int]bool, len(a))
	out := append([]feedstore.Post{}, a...)
	for _, p := range a {
		seen[p.ID] = true
	}
	for _, p := range b {
		if !seen[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// rankTags counts hashtag frequency across the matched posts, most used
// first. Ties break on the tag name so the ordering is stable.
func rankTags(posts []feedstore.Post) []tagCount {
	counts := map[string]int{}
	for _, p := range posts {
		for _, tag := range p.Hashtags {
			counts[tag]++
		}
	}
	out := make([]tagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, tagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
