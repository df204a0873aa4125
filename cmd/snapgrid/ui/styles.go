// Package ui provides the visual styling for the snapgrid TUI.
// One Theme struct per palette with light/dark variants, composed into a
// Styles bundle the pages render with.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#fafafa")
	LightForeground = lipgloss.Color("#262626")
	LightPrimary    = lipgloss.Color("#d62976") // Magenta from the story ring gradient
	LightAccent     = lipgloss.Color("#fa7e1e") // Orange from the story ring gradient
	LightSecondary  = lipgloss.Color("#e8e8e8")
	LightMuted      = lipgloss.Color("#8e8e8e")
	LightBorder     = lipgloss.Color("#dbdbdb")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#121212")
	DarkForeground = lipgloss.Color("#f5f5f5")
	DarkPrimary    = lipgloss.Color("#e95aa0")
	DarkAccent     = lipgloss.Color("#feda75") // Yellow end of the gradient
	DarkSecondary  = lipgloss.Color("#262626")
	DarkMuted      = lipgloss.Color("#737373")
	DarkBorder     = lipgloss.Color("#363636")
	DarkCard       = lipgloss.Color("#1e1e1e")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#ed4956") // Like heart red
	Success     = lipgloss.Color("#78de85")
	Warning     = lipgloss.Color("#ffcc4d")
	Info        = lipgloss.Color("#4d9fff")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// ThemeByName resolves a configured theme name; "auto" falls back to
// terminal detection.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	default:
		return DetectTheme()
	}
}

// DetectTheme auto-detects based on terminal hints, defaulting to dark
// (a feed app is usually run in a dark terminal).
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// Format is usually "foreground;background"
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if bgIdx == 7 || bgIdx == 15 {
					return LightTheme()
				}
			}
		}
	}

	if os.Getenv("SNAPGRID_DARK_MODE") == "0" {
		return LightTheme()
	}

	return DarkTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style
	Card   lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Hashtag  lipgloss.Style

	// Feed
	Username     lipgloss.Style
	Liked        lipgloss.Style
	SelectedCard lipgloss.Style

	// Carousel
	StoryRing       lipgloss.Style
	StoryRingViewed lipgloss.Style
	StorySelected   lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Tabs
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	// Viewer overlay
	ViewerFrame lipgloss.Style
	ViewerText  lipgloss.Style
}

// NewStyles builds the style bundle for a theme.
func NewStyles(theme Theme) Styles {
	s := Styles{Theme: theme}

	s.App = lipgloss.NewStyle().
		Foreground(theme.Foreground)

	s.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(theme.Border).
		Padding(0, 1)

	s.Footer = lipgloss.NewStyle().
		Foreground(theme.Muted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(theme.Border).
		Padding(0, 1)

	s.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		MarginBottom(1)

	s.SelectedCard = s.Card.
		BorderForeground(theme.Primary)

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary)

	s.Subtitle = lipgloss.NewStyle().
		Foreground(theme.Accent)

	s.Body = lipgloss.NewStyle().
		Foreground(theme.Foreground)

	s.Muted = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.Bold = lipgloss.NewStyle().
		Bold(true)

	s.Hashtag = lipgloss.NewStyle().
		Foreground(Info)

	s.Username = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Foreground)

	s.Liked = lipgloss.NewStyle().
		Foreground(Destructive)

	s.StoryRing = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.StoryRingViewed = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.StorySelected = lipgloss.NewStyle().
		Foreground(theme.Accent).
		Bold(true).
		Underline(true)

	s.Success = lipgloss.NewStyle().Foreground(Success)
	s.Error = lipgloss.NewStyle().Foreground(Destructive)
	s.Warning = lipgloss.NewStyle().Foreground(Warning)
	s.Info = lipgloss.NewStyle().Foreground(Info)

	s.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary).
		Underline(true).
		Padding(0, 1)

	s.TabInactive = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Padding(0, 1)

	s.ViewerFrame = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.Primary).
		Padding(1, 2)

	s.ViewerText = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Foreground).
		Align(lipgloss.Center)

	return s
}
