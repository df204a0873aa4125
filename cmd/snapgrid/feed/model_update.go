package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"snapgrid/internal/feedstore"
	"snapgrid/internal/logging"
)

// Update is the main message loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dataLoadedMsg:
		return m.onDataLoaded(msg)

	case playbackTickMsg:
		cmd := m.handleViewerTick(msg)
		return m, cmd

	case storiesRefreshedMsg:
		if msg.err == nil {
			m.storiesBy = msg.storiesBy
			m.rebuildCarousel()
		}
		return m, nil

	case storageChangedMsg:
		// Another process rewrote the storage file; pull everything fresh.
		logging.UI("storage changed externally, reloading")
		cmds := []tea.Cmd{m.loadAllCmd()}
		if m.watcher != nil {
			cmds = append(cmds, m.waitForStorageChange())
		}
		return m, tea.Batch(cmds...)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case postMutatedMsg:
		return m.onPostMutated(msg)

	case postCreatedMsg:
		if msg.err != nil {
			return m.withNotice("couldn't publish post: "+msg.err.Error(), noticeError)
		}
		m.posts = append([]feedstore.Post{msg.post}, m.posts...)
		m.page = PageFeed
		m.postCursor = 0
		m.resetNewPostForm()
		return m.withNotice("post published", noticeSuccess)

	case postDeletedMsg:
		if msg.err != nil {
			return m.withNotice("delete failed: "+msg.err.Error(), noticeError)
		}
		m.removePost(msg.id)
		return m.withNotice("post deleted", noticeInfo)

	case commentsLoadedMsg:
		if msg.err == nil {
			m.openComments[msg.postID] = msg.comments
		}
		return m, nil

	case commentAddedMsg:
		if msg.err != nil {
			return m.withNotice("comment failed: "+msg.err.Error(), noticeError)
		}
		m.openComments[msg.comment.PostID] = append(m.openComments[msg.comment.PostID], msg.comment)
		if i := m.postIndexByID(msg.comment.PostID); i >= 0 {
			m.posts[i].Comments = append(m.posts[i].Comments, msg.comment.ID)
		}
		return m, nil

	case profileSavedMsg:
		if msg.err != nil {
			return m.withNotice("profile update failed: "+msg.err.Error(), noticeError)
		}
		m.currentUser = msg.user
		m.usersByID[msg.user.ID] = msg.user
		for i := range m.users {
			if m.users[i].ID == msg.user.ID {
				m.users[i] = msg.user
			}
		}
		m.editing = false
		return m.withNotice("profile saved", noticeSuccess)

	case storyPostedMsg:
		if msg.err != nil {
			return m.withNotice("story failed: "+msg.err.Error(), noticeError)
		}
		m.storiesBy[msg.story.UserID] = append(m.storiesBy[msg.story.UserID], msg.story)
		m.rebuildCarousel()
		return m.withNotice("story posted", noticeSuccess)

	case searchResultsMsg:
		if msg.query != strings.TrimSpace(m.searchInput.Value()) {
			return m, nil // stale, a newer query is in flight
		}
		if msg.err != nil {
			return m.withNotice("search failed: "+msg.err.Error(), noticeError)
		}
		m.searchPosts = msg.posts
		m.searchUsers = msg.users
		m.searchTags = msg.tags
		m.searchCursor = 0
		return m, nil

	case savedLoadedMsg:
		if msg.err == nil {
			m.savedPosts = msg.posts
			if m.savedCursor >= len(m.savedPosts) {
				m.savedCursor = 0
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	return m, nil
}

// onDataLoaded installs the initial snapshot and derives the lookup tables.
func (m Model) onDataLoaded(msg dataLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		m.loadErr = msg.err
		logging.UIError("initial load failed: %v", msg.err)
		return m, nil
	}

	m.loadErr = nil
	m.posts = msg.posts
	m.users = msg.users
	m.storiesBy = msg.storiesBy
	m.currentUser = msg.current

	m.usersByID = make(map[int]feedstore.User, len(msg.users))
	for _, u := range msg.users {
		m.usersByID[u.ID] = u
	}

	if m.postCursor >= len(m.posts) {
		m.postCursor = 0
	}
	m.rebuildCarousel()
	return m, nil
}

// rebuildCarousel orders the stories strip: the current user's slot first
// (their "add story" entry point), then every other user with active
// stories, unviewed rings before viewed ones.
func (m *Model) rebuildCarousel() {
	entries := []carouselEntry{{
		User:    m.currentUser,
		Stories: m.storiesBy[m.currentUser.ID],
		IsSelf:  true,
	}}

	others := make([]carouselEntry, 0, len(m.storiesBy))
	for userID, stories := range m.storiesBy {
		if userID == m.currentUser.ID || len(stories) == 0 {
			continue
		}
		others = append(others, carouselEntry{
			User:      m.userByID(userID),
			Stories:   stories,
			AllViewed: allViewed(stories),
		})
	}
	sort.Slice(others, func(i, j int) bool {
		if others[i].AllViewed != others[j].AllViewed {
			return !others[i].AllViewed
		}
		return others[i].User.ID < others[j].User.ID
	})

	m.carousel = append(entries, others...)
	if m.carouselCursor >= len(m.carousel) {
		m.carouselCursor = 0
	}
}

func allViewed(stories []feedstore.Story) bool {
	for _, s := range stories {
		if !s.Viewed {
			return false
		}
	}
	return true
}

// userByID resolves a user, tolerating dangling references with a
// placeholder profile.
func (m Model) userByID(id int) feedstore.User {
	if u, ok := m.usersByID[id]; ok {
		return u
	}
	return feedstore.User{ID: id, Username: "unknown"}
}

func (m Model) postIndexByID(id int) int {
	for i, p := range m.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) removePost(id int) {
	kept := m.posts[:0]
	for _, p := range m.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	m.posts = kept
	if m.postCursor >= len(m.posts) && m.postCursor > 0 {
		m.postCursor--
	}
}

// onPostMutated reconciles an optimistic toggle with the store's answer:
// success installs the authoritative post, failure reverts to the snapshot
// taken before the toggle.
func (m Model) onPostMutated(msg postMutatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.replacePost(msg.prev)
		return m.withNotice("change didn't stick: "+msg.err.Error(), noticeError)
	}
	m.replacePost(msg.post)
	if m.page == PageSaved {
		return m, m.loadSavedCmd()
	}
	return m, nil
}

func (m *Model) replacePost(post feedstore.Post) {
	if i := m.postIndexByID(post.ID); i >= 0 {
		m.posts[i] = post
	}
	for i := range m.savedPosts {
		if m.savedPosts[i].ID == post.ID {
			m.savedPosts[i] = post
		}
	}
	for i := range m.searchPosts {
		if m.searchPosts[i].ID == post.ID {
			m.searchPosts[i] = post
		}
	}
}

// withNotice sets the transient status line and schedules its expiry.
func (m Model) withNotice(text string, level noticeLevel) (tea.Model, tea.Cmd) {
	m.notice = text
	m.noticeLevel = level
	m.noticeSeq++
	return m, noticeCmd(m.noticeSeq)
}

// ============================================================================
// KEY HANDLING
// ============================================================================

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The viewer overlay captures everything.
	if m.viewer != nil {
		cmd := m.handleViewerKey(msg)
		return m, cmd
	}

	// Text inputs capture everything except escape/enter routing.
	if m.inputActive() {
		return m.onInputKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.closeViewer()
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "esc":
		m.showHelp = false
		return m, nil

	case "r":
		if m.loadErr != nil || m.page == PageFeed {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.loadAllCmd())
		}
	}

	if m.loading || m.loadErr != nil {
		return m, nil
	}

	// Page switching
	switch msg.String() {
	case "1":
		m.page = PageFeed
		return m, nil
	case "2":
		m.page = PageSearch
		m.searchInput.Focus()
		return m, nil
	case "3":
		m.page = PageSaved
		return m, m.loadSavedCmd()
	case "4":
		m.page = PageProfile
		return m, nil
	case "5":
		m.page = PageNewPost
		m.npFocus = 0
		m.npImage.Focus()
		return m, nil
	}

	switch m.page {
	case PageFeed:
		return m.onFeedKey(msg)
	case PageSearch:
		return m.onSearchKey(msg)
	case PageSaved:
		return m.onSavedKey(msg)
	case PageProfile:
		return m.onProfileKey(msg)
	}
	return m, nil
}

func (m Model) inputActive() bool {
	switch {
	case m.commenting:
		return true
	case m.page == PageSearch && m.searchInput.Focused():
		return true
	case m.page == PageProfile && m.editing:
		return true
	case m.page == PageNewPost:
		return true
	}
	return false
}

func (m Model) onFeedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.postCursor < len(m.posts)-1 {
			m.postCursor++
		}
		return m, nil

	case "k", "up":
		if m.postCursor > 0 {
			m.postCursor--
		}
		return m, nil

	case "h", "left":
		if m.carouselCursor > 0 {
			m.carouselCursor--
		}
		return m, nil

	case "l", "right":
		if m.carouselCursor < len(m.carousel)-1 {
			m.carouselCursor++
		}
		return m, nil

	case "enter", "o":
		// Open the selected carousel entry's stories.
		if m.carouselCursor < len(m.carousel) {
			entry := m.carousel[m.carouselCursor]
			if entry.IsSelf && len(entry.Stories) == 0 {
				return m.withNotice("no story yet - press 4 then S to post one", noticeInfo)
			}
			viewer, cmd := m.openViewer(entry)
			if viewer != nil {
				m.viewer = viewer
				return m, cmd
			}
		}
		return m, nil

	case "L":
		return m.toggleCursorPost(true)

	case "s":
		return m.toggleCursorPost(false)

	case "c":
		if p, ok := m.cursorPost(); ok {
			m.commenting = true
			m.commentInput.Focus()
			if _, loaded := m.openComments[p.ID]; !loaded {
				return m, m.loadCommentsCmd(p.ID)
			}
		}
		return m, nil

	case "x":
		if p, ok := m.cursorPost(); ok {
			if _, open := m.openComments[p.ID]; open {
				delete(m.openComments, p.ID)
				return m, nil
			}
			return m, m.loadCommentsCmd(p.ID)
		}
		return m, nil

	case "d":
		if p, ok := m.cursorPost(); ok && p.UserID == m.currentUser.ID {
			return m, m.deletePostCmd(p.ID)
		}
		return m.withNotice("you can only delete your own posts", noticeInfo)
	}
	return m, nil
}

// toggleCursorPost applies a like or save optimistically, then asks the
// store to confirm.
func (m Model) toggleCursorPost(like bool) (tea.Model, tea.Cmd) {
	p, ok := m.cursorPost()
	if !ok {
		return m, nil
	}
	prev := p

	if like {
		if p.Likes > 0 {
			p.Likes--
		} else {
			p.Likes++
		}
	} else {
		p.Saved = !p.Saved
	}
	m.replacePost(p)

	if like {
		return m, m.toggleLikeCmd(prev)
	}
	return m, m.toggleSaveCmd(prev)
}

func (m Model) cursorPost() (feedstore.Post, bool) {
	if m.postCursor < 0 || m.postCursor >= len(m.posts) {
		return feedstore.Post{}, false
	}
	return m.posts[m.postCursor], true
}

// searchResultLen is the row count of the active search tab, the bound for
// the cursor.
func (m Model) searchResultLen() int {
	switch m.searchTab {
	case TabUsers:
		return len(m.searchUsers)
	case TabTags:
		return len(m.searchTags)
	default:
		return len(m.searchPosts)
	}
}

func (m Model) onSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.searchTab = (m.searchTab + 1) % 3
		m.searchCursor = 0
		return m, nil
	case "/", "i":
		m.searchInput.Focus()
		return m, nil
	case "j", "down":
		if m.searchCursor < m.searchResultLen()-1 {
			m.searchCursor++
		}
		return m, nil
	case "k", "up":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "enter":
		// Selecting a tag re-runs the search scoped to that hashtag.
		if m.searchTab == TabTags && m.searchCursor < len(m.searchTags) {
			tag := m.searchTags[m.searchCursor].Tag
			m.searchInput.SetValue("#" + tag)
			m.searchTab = TabPosts
			m.searchCursor = 0
			return m, m.searchCmd("#" + tag)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) onSavedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.savedCursor < len(m.savedPosts)-1 {
			m.savedCursor++
		}
	case "k", "up":
		if m.savedCursor > 0 {
			m.savedCursor--
		}
	case "s", "u":
		if m.savedCursor < len(m.savedPosts) {
			return m, m.toggleSaveCmd(m.savedPosts[m.savedCursor])
		}
	}
	return m, nil
}

func (m Model) onProfileKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "e":
		m.editing = true
		m.editFocus = 0
		m.editUsername.SetValue(m.currentUser.Username)
		m.editBio.SetValue(m.currentUser.Bio)
		m.editPic.SetValue(m.currentUser.ProfilePic)
		m.editUsername.Focus()
		return m, nil

	case "S":
		// Quick text story from the profile page.
		return m, m.postStoryCmd(feedstore.StoryDraft{
			UserID:  m.currentUser.ID,
			Content: "👋 from " + m.currentUser.Username,
			Type:    feedstore.StoryText,
		})
	}
	return m, nil
}

// onInputKey routes keys while a text input owns focus.
func (m Model) onInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.commenting:
		return m.onCommentInput(msg)
	case m.page == PageSearch:
		return m.onSearchInput(msg)
	case m.page == PageProfile && m.editing:
		return m.onEditInput(msg)
	case m.page == PageNewPost:
		return m.onNewPostInput(msg)
	}
	return m, nil
}

func (m Model) onCommentInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.commenting = false
		m.commentInput.Blur()
		m.commentInput.SetValue("")
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.commentInput.Value())
		m.commenting = false
		m.commentInput.Blur()
		m.commentInput.SetValue("")
		p, ok := m.cursorPost()
		if !ok || text == "" {
			return m, nil
		}
		return m, m.addCommentCmd(feedstore.CommentDraft{
			PostID: p.ID,
			UserID: m.currentUser.ID,
			Text:   text,
		})
	}

	var cmd tea.Cmd
	m.commentInput, cmd = m.commentInput.Update(msg)
	return m, cmd
}

func (m Model) onSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.Blur()
		return m, nil
	case "enter":
		m.searchInput.Blur()
		query := strings.TrimSpace(m.searchInput.Value())
		if query == "" {
			return m, nil
		}
		return m, m.searchCmd(query)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) onEditInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inputs := []*textinput.Model{&m.editUsername, &m.editBio, &m.editPic}

	switch msg.String() {
	case "esc":
		m.editing = false
		m.blurAll(inputs)
		return m, nil

	case "tab", "down":
		m.editFocus = (m.editFocus + 1) % len(inputs)
		m.focusOnly(inputs, m.editFocus)
		return m, nil

	case "shift+tab", "up":
		m.editFocus = (m.editFocus + len(inputs) - 1) % len(inputs)
		m.focusOnly(inputs, m.editFocus)
		return m, nil

	case "enter":
		m.blurAll(inputs)
		username := strings.TrimSpace(m.editUsername.Value())
		bio := m.editBio.Value()
		pic := strings.TrimSpace(m.editPic.Value())
		return m, m.saveProfileCmd(feedstore.UserPatch{
			Username:   &username,
			Bio:        &bio,
			ProfilePic: &pic,
		})
	}

	var cmd tea.Cmd
	*inputs[m.editFocus], cmd = inputs[m.editFocus].Update(msg)
	return m, cmd
}

func (m Model) onNewPostInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inputs := []*textinput.Model{&m.npImage, &m.npCaption, &m.npTags}

	switch msg.String() {
	case "esc":
		m.page = PageFeed
		m.resetNewPostForm()
		return m, nil

	case "tab", "down":
		m.npFocus = (m.npFocus + 1) % len(inputs)
		m.focusOnly(inputs, m.npFocus)
		return m, nil

	case "shift+tab", "up":
		m.npFocus = (m.npFocus + len(inputs) - 1) % len(inputs)
		m.focusOnly(inputs, m.npFocus)
		return m, nil

	case "enter":
		image := strings.TrimSpace(m.npImage.Value())
		caption := strings.TrimSpace(m.npCaption.Value())
		if image == "" && caption == "" {
			return m.withNotice("a post needs an image or a caption", noticeInfo)
		}
		return m, m.createPostCmd(feedstore.PostDraft{
			UserID:    m.currentUser.ID,
			ImageURL:  image,
			Caption:   caption,
			Hashtags:  splitTags(m.npTags.Value()),
			Timestamp: time.Now().UTC(),
		})
	}

	var cmd tea.Cmd
	*inputs[m.npFocus], cmd = inputs[m.npFocus].Update(msg)
	return m, cmd
}

func (m *Model) resetNewPostForm() {
	m.npImage.SetValue("")
	m.npCaption.SetValue("")
	m.npTags.SetValue("")
	m.npFocus = 0
	m.npImage.Blur()
	m.npCaption.Blur()
	m.npTags.Blur()
}

func (m *Model) focusOnly(inputs []*textinput.Model, idx int) {
	for i, in := range inputs {
		if i == idx {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

func (m *Model) blurAll(inputs []*textinput.Model) {
	for _, in := range inputs {
		in.Blur()
	}
}

// splitTags tokenizes the hashtag field: commas and whitespace separate,
// leading '#' is stripped, empties dropped.
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(f, "#")
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
