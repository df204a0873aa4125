package feed

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"snapgrid/internal/feedstore"
	"snapgrid/internal/playback"
)

// viewerModel is the story viewer overlay. It owns a playback.Controller and
// the tick cadence: ticks are scheduled only while the controller reports
// Playing, so a paused or closed viewer generates no timer traffic at all.
type viewerModel struct {
	ctrl    *playback.Controller
	prog    progress.Model // the current story's bar
	paused  bool           // mirrors the machine for cheap rendering
	tickGen int            // current tick chain; stale-generation ticks are dropped
}

// openViewer starts a session over the entry's stories. Returns nil when the
// entry has nothing to play (the current user's empty "add story" slot).
func (m *Model) openViewer(entry carouselEntry) (*viewerModel, tea.Cmd) {
	if len(entry.Stories) == 0 {
		return nil, nil
	}

	ctrl := playback.New(m.stores.Stories, m.cfg.StoryDuration(), m.cfg.TickInterval())
	if !ctrl.Open(entry.User, entry.Stories) {
		return nil, nil
	}
	prog := progress.New(
		progress.WithGradient("#d62976", "#fa7e1e"),
		progress.WithoutPercentage(),
	)
	v := &viewerModel{ctrl: ctrl, prog: prog}
	return v, m.tickEvery(v.tickGen)
}

// handleTick advances playback. Returns the follow-up tick command while the
// machine keeps playing, nil once it pauses or closes. Only the current
// chain's ticks count: tea.Tick one-shots can't be cancelled, so manual
// navigation supersedes the old chain by bumping the generation and its
// leftover tick falls through here without re-arming. One chain at a time
// keeps progress at the calibrated rate.
func (m *Model) handleViewerTick(msg playbackTickMsg) tea.Cmd {
	if m.viewer == nil || msg.gen != m.viewer.tickGen {
		return nil
	}
	switch m.viewer.ctrl.Tick() {
	case playback.StatePlaying:
		return m.tickEvery(m.viewer.tickGen)
	case playback.StateClosed:
		m.closeViewer()
		return m.refreshCarouselCmd()
	default:
		return nil
	}
}

// handleViewerKey processes keys while the overlay is up. The overlay
// swallows every key; the pages underneath never see input from a viewing
// session.
func (m *Model) handleViewerKey(msg tea.KeyMsg) tea.Cmd {
	v := m.viewer
	switch msg.String() {
	case "esc", "q":
		m.closeViewer()
		return m.refreshCarouselCmd()

	case "right", "l":
		if v.ctrl.Next() == playback.StateClosed {
			m.closeViewer()
			return m.refreshCarouselCmd()
		}
		v.paused = false
		v.tickGen++
		return m.tickEvery(v.tickGen)

	case "left", "h":
		v.ctrl.Previous()
		v.paused = false
		v.tickGen++
		return m.tickEvery(v.tickGen)

	case " ", "p":
		// Toggle pause, the hover analog. Resuming restarts the cadence;
		// progress carries over inside the controller.
		if v.paused {
			v.ctrl.Resume()
			v.paused = false
			v.tickGen++
			return m.tickEvery(v.tickGen)
		}
		v.ctrl.Pause()
		v.paused = true
		return nil
	}
	return nil
}

// closeViewer tears the session down and drops the overlay. The controller's
// Close joins the view worker, so no goroutine survives the overlay.
func (m *Model) closeViewer() {
	if m.viewer == nil {
		return
	}
	m.viewer.ctrl.Close()
	m.viewer = nil
}

// refreshCarouselCmd reloads stories after a session so viewed rings gray
// out. Posts and users are kept; only the story map is refetched.
func (m *Model) refreshCarouselCmd() tea.Cmd {
	stores := m.stores
	return func() tea.Msg {
		ctx, cancel := storeCtx()
		defer cancel()
		storiesBy, err := stores.Stories.ActiveByUser(ctx)
		if err != nil {
			return storiesRefreshedMsg{err: err}
		}
		return storiesRefreshedMsg{storiesBy: storiesBy}
	}
}

type storiesRefreshedMsg struct {
	storiesBy map[int][]feedstore.Story
	err       error
}

// viewerView renders the overlay: username header, segmented progress bar,
// story content and key hints.
func (m Model) viewerView() string {
	v := m.viewer
	ctrl := v.ctrl

	story, ok := ctrl.Current()
	if !ok {
		return ""
	}
	user := ctrl.User()

	width := m.width - 12
	if width < 40 {
		width = 40
	}
	inner := width - 6

	header := m.styles.Username.Render("@"+user.Username) +
		m.styles.Muted.Render(fmt.Sprintf("  %s · %d/%d",
			relativeTime(story.Timestamp), ctrl.Index()+1, ctrl.Len()))
	if v.paused {
		header += m.styles.Warning.Render("  ⏸ paused")
	}

	bar := v.progressBar(ctrl.Index(), ctrl.Len(), ctrl.Progress(), inner, m.styles.StoryRing, m.styles.Muted)

	var body string
	switch story.Type {
	case feedstore.StoryText:
		body = m.styles.ViewerText.Width(inner).Render(story.Content)
	default:
		body = m.styles.Subtitle.Width(inner).Render("🖼  "+story.Content) + "\n" +
			m.styles.Muted.Width(inner).Render("(image story)")
	}

	hints := m.styles.Muted.Render("←/→ navigate · space pause · esc close")

	frame := m.styles.ViewerFrame.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, bar, "", body, "", hints),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame)
}

// progressBar draws one segment per story: full for passed segments, the
// animated progress component for the current one, empty for the rest.
func (v *viewerModel) progressBar(index, total int, pct float64, width int, on, off lipgloss.Style) string {
	if total <= 0 {
		return ""
	}
	segWidth := width/total - 1
	if segWidth < 4 {
		segWidth = 4
	}

	segs := make([]string, total)
	for i := 0; i < total; i++ {
		switch {
		case i < index:
			segs[i] = on.Render(strings.Repeat("━", segWidth))
		case i == index:
			v.prog.Width = segWidth
			segs[i] = v.prog.ViewAs(pct / 100)
		default:
			segs[i] = off.Render(strings.Repeat("─", segWidth))
		}
	}
	return strings.Join(segs, " ")
}
