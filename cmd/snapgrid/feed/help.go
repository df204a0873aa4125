package feed

import "github.com/charmbracelet/lipgloss"

const helpMarkdown = `# snapgrid keys

## Pages
| Key | Page |
|-----|------|
| 1 | Feed |
| 2 | Search |
| 3 | Saved |
| 4 | Profile |
| 5 | New post |

## Feed
- ` + "`j`/`k`" + ` move between posts
- ` + "`h`/`l`" + ` move along the stories strip
- ` + "`enter`" + ` open the selected user's stories
- ` + "`L`" + ` like / unlike the selected post
- ` + "`s`" + ` save / unsave the selected post
- ` + "`c`" + ` write a comment
- ` + "`x`" + ` show / hide comments
- ` + "`d`" + ` delete your own post
- ` + "`r`" + ` reload everything

## Story viewer
Stories auto-advance every few seconds.

- ` + "`←`/`→`" + ` previous / next story
- ` + "`space`" + ` pause and resume
- ` + "`esc`" + ` close the viewer

## Everywhere
- ` + "`?`" + ` toggle this help
- ` + "`q`" + ` quit
`

// helpView renders the key reference through glamour, falling back to the
// raw markdown if the renderer couldn't be built.
func (m Model) helpView() string {
	body := helpMarkdown
	if m.render != nil {
		if out, err := m.render.Render(helpMarkdown); err == nil {
			body = out
		}
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}
