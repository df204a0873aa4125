// Package feed provides the interactive TUI for snapgrid.
// The interface is split across multiple files:
//   - model.go: Types, Model, Init (this file)
//   - commands.go: tea.Cmd producers talking to the stores
//   - model_update.go: Update loop and key handling
//   - view.go: Rendering functions
//   - viewer.go: Story viewer overlay
//   - help.go: Markdown help overlay
package feed

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"snapgrid/cmd/snapgrid/ui"
	"snapgrid/internal/config"
	"snapgrid/internal/feedstore"
	"snapgrid/internal/localstore"
)

// Page determines which screen is active.
type Page int

const (
	PageFeed Page = iota
	PageSearch
	PageSaved
	PageProfile
	PageNewPost
)

func (p Page) String() string {
	switch p {
	case PageFeed:
		return "Feed"
	case PageSearch:
		return "Search"
	case PageSaved:
		return "Saved"
	case PageProfile:
		return "Profile"
	case PageNewPost:
		return "New Post"
	default:
		return "?"
	}
}

// SearchTab is the active result set on the search page.
type SearchTab int

const (
	TabPosts SearchTab = iota
	TabUsers
	TabTags
)

// carouselEntry is one slot in the stories strip.
type carouselEntry struct {
	User      feedstore.User
	Stories   []feedstore.Story
	IsSelf    bool // current user's "add story" slot
	AllViewed bool
}

// tagCount is one ranked hashtag on the search page.
type tagCount struct {
	Tag   string
	Count int
}

// Model is the main model for the snapgrid TUI.
type Model struct {
	// Wiring
	cfg     *config.Config
	stores  *feedstore.Stores
	watcher *localstore.Watcher // nil when watching is disabled
	styles  ui.Styles
	render  *glamour.TermRenderer

	// Layout
	width  int
	height int

	// Navigation
	page     Page
	showHelp bool

	// Initial load state: users + stories + posts land together
	loading bool
	loadErr error
	spinner spinner.Model

	// Data
	posts       []feedstore.Post
	users       []feedstore.User
	usersByID   map[int]feedstore.User
	storiesBy   map[int][]feedstore.Story
	currentUser feedstore.User

	// Feed page
	postCursor     int
	carousel       []carouselEntry
	carouselCursor int
	openComments   map[int][]feedstore.Comment // postID -> loaded comments
	commentInput   textinput.Model
	commenting     bool // comment input focused for the cursor post

	// Story viewer overlay (nil when closed)
	viewer *viewerModel

	// Search page
	searchInput  textinput.Model
	searchTab    SearchTab
	searchCursor int
	searchPosts  []feedstore.Post
	searchUsers  []feedstore.User
	searchTags   []tagCount

	// Saved page
	savedPosts  []feedstore.Post
	savedCursor int

	// Profile page
	editing      bool
	editUsername textinput.Model
	editBio      textinput.Model
	editPic      textinput.Model
	editFocus    int

	// New post page
	npImage   textinput.Model
	npCaption textinput.Model
	npTags    textinput.Model
	npFocus   int

	// Transient notice (the toast analog)
	notice      string
	noticeLevel noticeLevel
	noticeSeq   int
}

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeError
)

// New builds the TUI model. watcher may be nil.
func New(cfg *config.Config, stores *feedstore.Stores, watcher *localstore.Watcher) Model {
	styles := ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Subtitle

	search := textinput.New()
	search.Placeholder = "Search posts, people, #tags"
	search.CharLimit = 80

	comment := textinput.New()
	comment.Placeholder = "Add a comment..."
	comment.CharLimit = 240

	mkInput := func(placeholder string, limit int) textinput.Model {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = limit
		return in
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(72),
	)

	return Model{
		cfg:          cfg,
		stores:       stores,
		watcher:      watcher,
		styles:       styles,
		render:       renderer,
		page:         PageFeed,
		loading:      true,
		spinner:      sp,
		usersByID:    map[int]feedstore.User{},
		storiesBy:    map[int][]feedstore.Story{},
		openComments: map[int][]feedstore.Comment{},
		searchInput:  search,
		commentInput: comment,
		editUsername: mkInput("username", 40),
		editBio:      mkInput("bio", 160),
		editPic:      mkInput("profile picture URL", 200),
		npImage:      mkInput("image URL", 200),
		npCaption:    mkInput("caption", 240),
		npTags:       mkInput("hashtags (space or comma separated)", 160),
	}
}

// Init starts the spinner, the initial data load, and the storage watcher
// subscription.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.loadAllCmd()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForStorageChange())
	}
	return tea.Batch(cmds...)
}

// tickEvery returns the playback tick command at the configured cadence,
// stamped with the chain generation it belongs to.
func (m Model) tickEvery(gen int) tea.Cmd {
	return tea.Tick(m.cfg.TickInterval(), func(t time.Time) tea.Msg {
		return playbackTickMsg{gen: gen}
	})
}
