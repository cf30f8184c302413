package format

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/idilsaglam/todosync/internal/model"
)

// Checklist renders items as a GitHub-style task list under a heading.
func Checklist(title string, items []model.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	st := model.ComputeStats(items)
	fmt.Fprintf(&b, "Total: %d | Completed: %d | Not Completed: %d\n\n", st.Total, st.Completed, st.Pending)
	if len(items) == 0 {
		b.WriteString("_No todos._\n")
		return b.String()
	}
	for _, it := range items {
		box := " "
		if it.Completed {
			box = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", box, escapeInline(it.Title))
	}
	return b.String()
}

// escapeInline keeps titles from turning into markdown structure.
func escapeInline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

var (
	rendererMu sync.Mutex
	renderers  = map[string]*glamour.TermRenderer{}
)

// RenderMarkdown styles md for a terminal. style is a glamour standard style
// ("dark", "light", "notty", ...). On renderer failure md is returned as is.
func RenderMarkdown(md string, width int, style string) string {
	if width < 20 {
		width = 20
	}
	if style == "" {
		style = "dark"
	}
	key := fmt.Sprintf("%s:%d", style, width)

	rendererMu.Lock()
	defer rendererMu.Unlock()
	r := renderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		renderers[key] = rr
		r = rr
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
