// Package tui is the interactive list screen. It renders controller state
// and runs every mutation as a tea.Cmd so the event loop never blocks.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

type focus int

const (
	focusList focus = iota
	focusInput
)

const toastTTL = 3 * time.Second

// rows taken by everything except the list (header, input, tabs, hints, help)
const chromeRows = 14

type (
	stateMsg        todo.State
	addDoneMsg      struct{ err error }
	actionDoneMsg   struct{ err error }
	toastExpiredMsg struct{ id int }
	clipboardMsg    struct{ err error }
)

type toast struct {
	id     int
	notice todo.Notice
}

// Model is the Bubble Tea model for the list screen.
type Model struct {
	ctx     context.Context
	ctrl    *todo.Controller
	actions *todo.Actions
	keys    keyMap
	copy    func(string) error

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	focus    focus
	filter   model.Filter
	state    todo.State
	adding   bool
	confirm  *confirmRequestMsg
	alerts   []todo.Notice
	toast    *toast
	toastSeq int

	width, height int
}

// New builds the model. The controller should already be active; the model
// only reads its updates.
func New(ctx context.Context, ctrl *todo.Controller, actions *todo.Actions) Model {
	t := ui.Current()

	l := list.New(nil, itemDelegate{now: time.Now}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.DisableQuitKeybindings()
	l.Styles.PaginationStyle = t.Help

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Add a new todo..."
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = t.Accent

	h := help.New()
	h.Styles.ShortKey = t.Accent
	h.Styles.FullKey = t.Accent

	m := Model{
		ctx:     ctx,
		ctrl:    ctrl,
		actions: actions,
		keys:    defaultKeys(),
		copy:    clipboard.WriteAll,
		list:    l,
		input:   ti,
		spinner: sp,
		help:    h,
		filter:  model.All,
		state:   ctrl.State(),
		width:   80,
		height:  24,
	}
	m.resize()
	m.syncList()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case stateMsg:
		m.state = todo.State(msg)
		m.syncList()
		return m, m.waitForState()

	case noticeMsg:
		cmd := m.notify(todo.Notice(msg))
		return m, cmd

	case toastExpiredMsg:
		if m.toast != nil && m.toast.id == msg.id {
			m.toast = nil
		}
		return m, nil

	case confirmRequestMsg:
		if m.confirm != nil {
			msg.reply <- false
			return m, nil
		}
		m.confirm = &msg
		return m, nil

	case addDoneMsg:
		m.adding = false
		if msg.err == nil {
			m.input.Reset()
		}
		if m.focus == focusInput {
			cmd := m.input.Focus()
			return m, cmd
		}
		return m, nil

	case actionDoneMsg:
		return m, nil

	case clipboardMsg:
		n := todo.Notice{Severity: todo.Info, Title: "Info", Message: "Copied to clipboard"}
		if msg.err != nil {
			n = todo.Notice{Severity: todo.Error, Title: "Error", Message: "Could not copy to clipboard"}
		}
		cmd := m.notify(n)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}
	if len(m.alerts) > 0 {
		if key.Matches(msg, m.keys.Dismiss) {
			m.alerts = m.alerts[1:]
		}
		return m, nil
	}
	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.answer(true)
		case key.Matches(msg, m.keys.Cancel):
			m.answer(false)
		}
		return m, nil
	}
	if m.focus == focusInput {
		return m.handleInputKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Focus), msg.Type == tea.KeyEsc:
		m.focus = focusList
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.adding {
			return m, nil
		}
		m.adding = true
		m.input.Blur()
		ctx, actions, text := m.ctx, m.actions, m.input.Value()
		return m, func() tea.Msg { return addDoneMsg{err: actions.Add(ctx, text)} }
	}
	if m.adding {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Focus), key.Matches(msg, m.keys.AddFocus):
		m.focus = focusInput
		if m.adding {
			return m, nil
		}
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Toggle):
		if it, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error {
				_, err := m.actions.Toggle(ctx, it.ID)
				return err
			})
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error {
				_, err := m.actions.Delete(ctx, it.ID)
				return err
			})
		}
		return m, nil
	case key.Matches(msg, m.keys.CompleteAll):
		items := m.state.Items
		return m, m.run(func(ctx context.Context) error { return m.actions.CompleteAll(ctx, items) })
	case key.Matches(msg, m.keys.ClearComplete):
		items := m.state.Items
		return m, m.run(func(ctx context.Context) error {
			_, err := m.actions.ClearCompleted(ctx, items)
			return err
		})
	case key.Matches(msg, m.keys.FilterAll):
		m.setFilter(model.All)
		return m, nil
	case key.Matches(msg, m.keys.FilterPending):
		m.setFilter(model.NotCompleted)
		return m, nil
	case key.Matches(msg, m.keys.FilterDone):
		m.setFilter(model.Completed)
		return m, nil
	case key.Matches(msg, m.keys.FilterCycle):
		m.setFilter(m.filter.Next())
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		ctrl := m.ctrl
		return m, m.run(func(ctx context.Context) error {
			if !ctrl.Active() {
				if err := ctrl.Activate(); err != nil {
					return err
				}
			}
			return ctrl.Refresh(ctx)
		})
	case key.Matches(msg, m.keys.Copy):
		if it, ok := m.selected(); ok {
			copyFn, title := m.copy, it.Title
			return m, func() tea.Msg { return clipboardMsg{err: copyFn(title)} }
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		m.answer(false)
	}
	return m, tea.Quit
}

func (m *Model) answer(ok bool) {
	m.confirm.reply <- ok
	m.confirm = nil
}

// run executes fn off the event loop. Failures were already reported to the
// user by the action itself.
func (m Model) run(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return actionDoneMsg{err: fn(ctx)} }
}

func (m Model) waitForState() tea.Cmd {
	ch, ctx := m.ctrl.Updates(), m.ctx
	return func() tea.Msg {
		select {
		case s := <-ch:
			return stateMsg(s)
		case <-ctx.Done():
			return nil
		}
	}
}

// notify queues errors as dialogs that stay until dismissed; everything else
// is a toast.
func (m *Model) notify(n todo.Notice) tea.Cmd {
	if n.Severity == todo.Error {
		m.alerts = append(m.alerts, n)
		return nil
	}
	return m.showToast(n)
}

func (m *Model) showToast(n todo.Notice) tea.Cmd {
	m.toastSeq++
	id := m.toastSeq
	m.toast = &toast{id: id, notice: n}
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

func (m *Model) setFilter(f model.Filter) {
	if f == m.filter {
		return
	}
	m.filter = f
	m.syncList()
	m.list.Select(0)
}

// syncList shows the filtered items and keeps the cursor on the same item
// when it is still visible.
func (m *Model) syncList() {
	visible := m.filter.Apply(m.state.Items)
	selectedID := ""
	if it, ok := m.selected(); ok {
		selectedID = it.ID
	}
	idx := m.list.Index()
	_ = m.list.SetItems(toListItems(visible))
	if selectedID != "" {
		for i, it := range visible {
			if it.ID == selectedID {
				m.list.Select(i)
				return
			}
		}
	}
	if n := len(visible); n > 0 && idx >= n {
		m.list.Select(n - 1)
	}
}

func (m *Model) resize() {
	rows := m.height - chromeRows
	if m.help.ShowAll {
		rows -= 4
	}
	if rows < 3 {
		rows = 3
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	m.list.SetSize(width, rows)
	m.input.Width = width - 4
	m.help.Width = width
}

func (m Model) selected() (model.Item, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return it.item, true
}

// ------- view -------

func (m Model) View() string {
	t := ui.Current()
	st := model.ComputeStats(m.state.Items)

	var b strings.Builder
	b.WriteString(t.Title.Render("My Todo List") + "\n")
	fmt.Fprintf(&b, "Total: %d | Completed: %d | Not Completed: %d\n", st.Total, st.Completed, st.Pending)
	b.WriteString(ui.ProgressBar(st.Completed, st.Total, 28) + "\n\n")
	b.WriteString(m.inputView() + "\n\n")
	b.WriteString(m.tabsView() + "\n")
	b.WriteString(m.syncView() + "\n\n")

	switch {
	case len(m.alerts) > 0:
		b.WriteString(m.alertView())
	case m.confirm != nil:
		b.WriteString(m.confirmView())
	default:
		b.WriteString(m.bodyView())
	}
	b.WriteString("\n")

	if st.Total > 0 {
		b.WriteString("\n" + t.Help.Render("A complete all · C clear completed"))
	}
	if m.toast != nil {
		b.WriteString("\n" + toastView(m.toast.notice))
	}
	b.WriteString("\n" + m.help.View(m.keys))

	frame := lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1)
	return frame.Render(b.String())
}

func (m Model) inputView() string {
	if m.adding {
		return m.spinner.View() + " Adding..."
	}
	return m.input.View()
}

func (m Model) tabsView() string {
	t := ui.Current()
	tabs := make([]string, 0, len(model.Filters))
	for _, f := range model.Filters {
		label := " " + f.String() + " "
		if f == m.filter {
			tabs = append(tabs, t.Selected.Render(label))
		} else {
			tabs = append(tabs, t.Muted.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) syncView() string {
	t := ui.Current()
	s := t.Success.Render("●") + " " + t.Muted.Render("Real-time sync enabled")
	if !m.state.Live && !m.state.Loading {
		s = t.Error.Render("●") + " " + t.Muted.Render("Not syncing, press r to retry")
	}
	if m.state.Refreshing {
		s += "  " + m.spinner.View() + " Refreshing..."
	}
	return s
}

func (m Model) bodyView() string {
	t := ui.Current()
	if m.state.Loading && len(m.state.Items) == 0 {
		return m.spinner.View() + " Loading todos..."
	}
	if len(m.list.Items()) == 0 {
		title, hint := m.filter.EmptyText()
		return t.Title.Render(title) + "\n" + t.Muted.Render(hint)
	}
	return m.list.View()
}

func (m Model) confirmView() string {
	t := ui.Current()
	c := m.confirm.Confirmation
	label := c.ConfirmLabel
	if label == "" {
		label = "Confirm"
	}
	body := t.Title.Render(c.Title) + "\n\n" + c.Message + "\n\n" +
		t.Error.Render("[y] "+label) + "   " + t.Muted.Render("[n] Cancel")
	return dialogBox(t).Render(body)
}

func (m Model) alertView() string {
	t := ui.Current()
	n := m.alerts[0]
	body := t.Error.Render(t.SymFail+" "+n.Title) + "\n\n" + n.Message + "\n\n" +
		t.Accent.Render("[enter] OK")
	if more := len(m.alerts) - 1; more > 0 {
		body += "   " + t.Muted.Render(fmt.Sprintf("(%d more)", more))
	}
	return dialogBox(t).Render(body)
}

func dialogBox(t ui.Theme) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(1, 2)
}

func toastView(n todo.Notice) string {
	t := ui.Current()
	switch n.Severity {
	case todo.Success:
		return t.Success.Render(t.SymDone+" "+n.Title) + " " + n.Message
	default:
		return t.Accent.Render(t.SymInfo+" "+n.Title) + " " + n.Message
	}
}
