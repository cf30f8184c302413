package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/ui"
)

// listItem adapts model.Item to bubbles/list.Item.
type listItem struct {
	item model.Item
}

func (i listItem) Title() string       { return i.item.Title }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.item.Title }

func toListItems(items []model.Item) []list.Item {
	out := make([]list.Item, 0, len(items))
	for _, it := range items {
		out = append(out, listItem{item: it})
	}
	return out
}

// createdLabel is what a row shows for its creation time.
func createdLabel(t, now time.Time) string {
	if t.IsZero() || now.Sub(t) < time.Minute {
		return "Just now"
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

// itemDelegate renders one item per line: cursor, checkbox, title, date.
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	box := t.Muted.Render(t.Checkbox(false))
	title := it.item.Title
	if it.item.Completed {
		box = t.Success.Render(t.Checkbox(true))
	}
	date := createdLabel(it.item.CreatedAt, d.now())

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render(">") + " "
	}

	// prefix(2) + box + space + title + gap + date
	room := m.Width() - 2 - lipgloss.Width(box) - 1 - 2 - ansi.StringWidth(date)
	if room < 8 {
		room = 8
	}
	title = ansi.Truncate(title, room, "…")
	gap := room - ansi.StringWidth(title) + 2
	if gap < 1 {
		gap = 1
	}
	if it.item.Completed {
		title = t.Done.Render(title)
	}
	fmt.Fprintf(w, "%s%s %s%*s%s", prefix, box, title, gap, "", t.Muted.Render(date))
}
