package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"snapgrid/internal/feedstore"
)

// View renders the active page, with the viewer and help overlays taking
// precedence over everything else.
func (m Model) View() string {
	if m.viewer != nil {
		return m.viewerView()
	}
	if m.showHelp {
		return m.helpView()
	}

	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" loading your feed...")
	}
	if m.loadErr != nil {
		body := m.styles.Error.Render("couldn't load the feed: "+m.loadErr.Error()) + "\n\n" +
			m.styles.Muted.Render("r retry · q quit")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}

	var body string
	switch m.page {
	case PageFeed:
		body = m.feedView()
	case PageSearch:
		body = m.searchView()
	case PageSaved:
		body = m.savedView()
	case PageProfile:
		body = m.profileView()
	case PageNewPost:
		body = m.newPostView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

// ============================================================================
// CHROME
// ============================================================================

func (m Model) headerView() string {
	tabs := make([]string, 0, 5)
	for i, page := range []Page{PageFeed, PageSearch, PageSaved, PageProfile, PageNewPost} {
		label := fmt.Sprintf("%d %s", i+1, page)
		if page == m.page {
			tabs = append(tabs, m.styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.styles.TabInactive.Render(label))
		}
	}
	title := m.styles.Title.Render("✦ snapgrid")
	return m.styles.Header.Width(m.width).Render(title + "  " + strings.Join(tabs, ""))
}

func (m Model) footerView() string {
	if m.notice != "" {
		var style = m.styles.Info
		switch m.noticeLevel {
		case noticeSuccess:
			style = m.styles.Success
		case noticeError:
			style = m.styles.Error
		}
		return m.styles.Footer.Width(m.width).Render(style.Render(m.notice))
	}

	var hints string
	switch m.page {
	case PageFeed:
		hints = "j/k posts · h/l stories · enter view story · L like · s save · c comment · x comments · ? help"
	case PageSearch:
		hints = "/ edit query · tab switch results · j/k move · ? help"
	case PageSaved:
		hints = "j/k move · s unsave · ? help"
	case PageProfile:
		hints = "e edit profile · S quick story · ? help"
	case PageNewPost:
		hints = "tab next field · enter publish · esc cancel"
	}
	return m.styles.Footer.Width(m.width).Render(hints)
}

// ============================================================================
// FEED PAGE
// ============================================================================

func (m Model) feedView() string {
	var b strings.Builder
	b.WriteString(m.carouselView())
	b.WriteString("\n")

	if len(m.posts) == 0 {
		b.WriteString(m.styles.Muted.Render("\n  nothing here yet - press 5 to create the first post"))
		return b.String()
	}

	// Window of posts around the cursor; full virtualization isn't worth it
	// at fixture scale.
	visible := m.visiblePostRange()
	for i := visible[0]; i < visible[1]; i++ {
		b.WriteString(m.postCard(m.posts[i], i == m.postCursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) visiblePostRange() [2]int {
	perPage := 3
	if m.height > 40 {
		perPage = 4
	}
	start := m.postCursor - 1
	if start < 0 {
		start = 0
	}
	end := start + perPage
	if end > len(m.posts) {
		end = len(m.posts)
	}
	return [2]int{start, end}
}

// carouselView renders the stories strip. The current user's slot reads
// "your story" (or "add story" when they have none); other rings gray out
// once every story is viewed.
func (m Model) carouselView() string {
	slots := make([]string, 0, len(m.carousel))
	for i, entry := range m.carousel {
		var label string
		switch {
		case entry.IsSelf && len(entry.Stories) == 0:
			label = "⊕ add story"
		case entry.IsSelf:
			label = "◉ your story"
		default:
			label = "◉ " + entry.User.Username
		}

		style := m.styles.StoryRing
		if entry.AllViewed && !entry.IsSelf {
			style = m.styles.StoryRingViewed
		}
		if i == m.carouselCursor {
			style = m.styles.StorySelected
		}
		slots = append(slots, style.Render(label))
	}
	return "  " + strings.Join(slots, "   ")
}

func (m Model) postCard(p feedstore.Post, selected bool) string {
	author := m.userByID(p.UserID)

	var b strings.Builder
	b.WriteString(m.styles.Username.Render("@" + author.Username))
	b.WriteString(m.styles.Muted.Render("  · " + relativeTime(p.Timestamp)))
	b.WriteString("\n")

	if p.ImageURL != "" {
		b.WriteString(m.styles.Muted.Render("🖼  " + p.ImageURL))
		b.WriteString("\n")
	}
	if p.Caption != "" {
		b.WriteString(m.styles.Body.Render(p.Caption))
		b.WriteString("\n")
	}
	if len(p.Hashtags) > 0 {
		tags := make([]string, len(p.Hashtags))
		for i, t := range p.Hashtags {
			tags[i] = "#" + t
		}
		b.WriteString(m.styles.Hashtag.Render(strings.Join(tags, " ")))
		b.WriteString("\n")
	}

	heart := "♡"
	if p.Likes > 0 {
		heart = m.styles.Liked.Render("♥")
	}
	var bookmark string
	if p.Saved {
		bookmark = m.styles.Subtitle.Render("⊙ saved")
	} else {
		bookmark = m.styles.Muted.Render("⊙")
	}
	b.WriteString(fmt.Sprintf("%s %d   💬 %d   %s",
		heart, p.Likes, len(p.Comments), bookmark))

	if comments, open := m.openComments[p.ID]; open {
		b.WriteString("\n")
		b.WriteString(m.commentsBlock(comments))
	}
	if selected && m.commenting {
		b.WriteString("\n")
		b.WriteString(m.commentInput.View())
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	if selected {
		return m.styles.SelectedCard.Width(width).Render(b.String())
	}
	return m.styles.Card.Width(width).Render(b.String())
}

func (m Model) commentsBlock(comments []feedstore.Comment) string {
	if len(comments) == 0 {
		return m.styles.Muted.Render("  no comments yet")
	}
	lines := make([]string, len(comments))
	for i, c := range comments {
		author := m.userByID(c.UserID)
		lines[i] = "  " + m.styles.Bold.Render(author.Username+": ") + c.Text
	}
	return strings.Join(lines, "\n")
}

// ============================================================================
// SEARCH PAGE
// ============================================================================

func (m Model) searchView() string {
	var b strings.Builder
	b.WriteString("  " + m.searchInput.View() + "\n\n")

	tabs := []struct {
		tab   SearchTab
		label string
	}{
		{TabPosts, fmt.Sprintf("Posts (%d)", len(m.searchPosts))},
		{TabUsers, fmt.Sprintf("People (%d)", len(m.searchUsers))},
		{TabTags, fmt.Sprintf("Tags (%d)", len(m.searchTags))},
	}
	rendered := make([]string, len(tabs))
	for i, t := range tabs {
		if t.tab == m.searchTab {
			rendered[i] = m.styles.TabActive.Render(t.label)
		} else {
			rendered[i] = m.styles.TabInactive.Render(t.label)
		}
	}
	b.WriteString("  " + strings.Join(rendered, "") + "\n\n")

	switch m.searchTab {
	case TabPosts:
		if len(m.searchPosts) == 0 {
			b.WriteString(m.styles.Muted.Render("  no matching posts"))
			break
		}
		for i, p := range m.searchPosts {
			if i > 4 {
				b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  …and %d more", len(m.searchPosts)-i)))
				break
			}
			b.WriteString(m.postCard(p, i == m.searchCursor))
			b.WriteString("\n")
		}

	case TabUsers:
		if len(m.searchUsers) == 0 {
			b.WriteString(m.styles.Muted.Render("  nobody found"))
			break
		}
		for i, u := range m.searchUsers {
			cursor := "  "
			if i == m.searchCursor {
				cursor = m.styles.Subtitle.Render("→ ")
			}
			b.WriteString(fmt.Sprintf("%s%s  %s\n", cursor,
				m.styles.Username.Render("@"+u.Username),
				m.styles.Muted.Render(u.Bio)))
		}

	case TabTags:
		if len(m.searchTags) == 0 {
			b.WriteString(m.styles.Muted.Render("  no tags in the results"))
			break
		}
		for i, t := range m.searchTags {
			cursor := "  "
			if i == m.searchCursor {
				cursor = m.styles.Subtitle.Render("→ ")
			}
			b.WriteString(fmt.Sprintf("%s%s %s\n", cursor,
				m.styles.Hashtag.Render("#"+t.Tag),
				m.styles.Muted.Render(fmt.Sprintf("(%d posts)", t.Count))))
		}
	}
	return b.String()
}

// ============================================================================
// SAVED PAGE
// ============================================================================

func (m Model) savedView() string {
	if len(m.savedPosts) == 0 {
		return m.styles.Muted.Render("\n  nothing saved yet - press s on a post to bookmark it")
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("  Saved posts") + "\n\n")
	for i, p := range m.savedPosts {
		b.WriteString(m.postCard(p, i == m.savedCursor))
		b.WriteString("\n")
	}
	return b.String()
}

// ============================================================================
// PROFILE PAGE
// ============================================================================

func (m Model) profileView() string {
	u := m.currentUser

	if m.editing {
		var b strings.Builder
		b.WriteString(m.styles.Title.Render("  Edit profile") + "\n\n")
		b.WriteString("  username  " + m.editUsername.View() + "\n")
		b.WriteString("  bio       " + m.editBio.View() + "\n")
		b.WriteString("  picture   " + m.editPic.View() + "\n\n")
		b.WriteString(m.styles.Muted.Render("  tab next field · enter save · esc cancel"))
		return b.String()
	}

	var mine int
	for _, p := range m.posts {
		if p.UserID == u.ID {
			mine++
		}
	}

	var b strings.Builder
	b.WriteString("\n  " + m.styles.Title.Render("@"+u.Username) + "\n")
	if u.Bio != "" {
		b.WriteString("  " + m.styles.Body.Render(u.Bio) + "\n")
	}
	if u.ProfilePic != "" {
		b.WriteString("  " + m.styles.Muted.Render(u.ProfilePic) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s posts   %s followers   %s following\n\n",
		m.styles.Bold.Render(fmt.Sprint(mine)),
		m.styles.Bold.Render(fmt.Sprint(u.Followers)),
		m.styles.Bold.Render(fmt.Sprint(u.Following))))

	b.WriteString(m.styles.Subtitle.Render("  Your posts") + "\n")
	found := false
	for _, p := range m.posts {
		if p.UserID != u.ID {
			continue
		}
		found = true
		caption := truncate(p.Caption, 60)
		b.WriteString(fmt.Sprintf("   · %s %s\n", caption,
			m.styles.Muted.Render(fmt.Sprintf("(♥ %d, 💬 %d)", p.Likes, len(p.Comments)))))
	}
	if !found {
		b.WriteString(m.styles.Muted.Render("   none yet\n"))
	}
	return b.String()
}

// ============================================================================
// NEW POST PAGE
// ============================================================================

func (m Model) newPostView() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("  New post") + "\n\n")
	b.WriteString("  image    " + m.npImage.View() + "\n")
	b.WriteString("  caption  " + m.npCaption.View() + "\n")
	b.WriteString("  tags     " + m.npTags.View() + "\n")
	return b.String()
}

// ============================================================================
// HELPERS
// ============================================================================

// relativeTime compresses a timestamp the feed way: "now", "5m", "3h", "2d".
// truncate shortens s to at most n runes, never splitting a multibyte
// character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
