package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todosync/internal/docstore"
	"github.com/idilsaglam/todosync/internal/docstore/jsonstore"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

type recordingPrompter struct {
	notices []todo.Notice
}

func (p *recordingPrompter) Notify(n todo.Notice) { p.notices = append(p.notices, n) }

func (p *recordingPrompter) Confirm(context.Context, todo.Confirmation) bool { return true }

func newTestModel(t *testing.T) (Model, *todo.Repository, *recordingPrompter) {
	t.Helper()
	ui.SetColorForcing(false, true)
	client := docstore.NewClient(jsonstore.OpenMemory())
	t.Cleanup(func() { _ = client.Close() })
	repo := todo.NewRepository(client, "")
	prompt := &recordingPrompter{}
	ctrl := todo.NewController(repo, prompt, nil)
	return New(context.Background(), ctrl, todo.NewActions(repo, prompt, nil)), repo, prompt
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return mm, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleState() stateMsg {
	now := time.Now().Add(-time.Hour)
	return stateMsg{Live: true, Items: []model.Item{
		{ID: "2", Title: "Walk dog", CreatedAt: now},
		{ID: "1", Title: "Buy milk", Completed: true, CreatedAt: now.Add(-time.Minute)},
	}}
}

func TestView_HeaderStatsAndRows(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, sampleState())

	out := m.View()
	for _, want := range []string{
		"My Todo List",
		"Total: 2 | Completed: 1 | Not Completed: 1",
		"Real-time sync enabled",
		"Walk dog",
		"Buy milk",
		"Add a new todo...",
		"A complete all",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestView_LoadingAndEmptyStates(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, stateMsg{Loading: true})
	if !strings.Contains(m.View(), "Loading todos...") {
		t.Fatalf("expected loading view:\n%s", m.View())
	}

	m, _ = update(t, m, stateMsg{})
	out := m.View()
	if !strings.Contains(out, "No todos yet!") || !strings.Contains(out, "Add one above to get started") {
		t.Fatalf("expected empty ALL view:\n%s", out)
	}
	if strings.Contains(out, "A complete all") {
		t.Fatalf("batch hints should be hidden with no items")
	}

	m, _ = update(t, m, keyRunes("2"))
	out = m.View()
	if !strings.Contains(out, "No not completed todos") || !strings.Contains(out, "Try a different filter") {
		t.Fatalf("expected empty filtered view:\n%s", out)
	}
}

func TestFilterKeysNarrowList(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, sampleState())

	m, _ = update(t, m, keyRunes("3"))
	if m.filter != model.Completed || len(m.list.Items()) != 1 {
		t.Fatalf("expected completed filter with one row, got %v/%d", m.filter, len(m.list.Items()))
	}
	m, _ = update(t, m, keyRunes("f"))
	if m.filter != model.All || len(m.list.Items()) != 2 {
		t.Fatalf("expected cycle back to ALL, got %v/%d", m.filter, len(m.list.Items()))
	}
}

func TestConfirmDialogAnswers(t *testing.T) {
	m, _, _ := newTestModel(t)
	reply := make(chan bool, 1)
	m, _ = update(t, m, confirmRequestMsg{
		Confirmation: todo.Confirmation{Title: "Delete Todo", Message: "Are you sure you want to delete this todo?", ConfirmLabel: "Delete"},
		reply:        reply,
	})
	if !strings.Contains(m.View(), "Are you sure you want to delete this todo?") {
		t.Fatalf("dialog not shown:\n%s", m.View())
	}

	// Keys other than y/n are swallowed while the dialog is open.
	m, _ = update(t, m, keyRunes("3"))
	if m.filter != model.All {
		t.Fatalf("filter changed behind dialog")
	}

	m, _ = update(t, m, keyRunes("n"))
	if got := <-reply; got {
		t.Fatalf("expected cancel")
	}
	if m.confirm != nil {
		t.Fatalf("dialog should close")
	}
}

func TestQuitRefusesPendingConfirm(t *testing.T) {
	m, _, _ := newTestModel(t)
	reply := make(chan bool, 1)
	m, _ = update(t, m, confirmRequestMsg{Confirmation: todo.Confirmation{Title: "Clear Completed"}, reply: reply})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if got := <-reply; got {
		t.Fatalf("pending dialog should be refused on quit")
	}
}

func TestAddFromInput(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusInput {
		t.Fatalf("tab should focus the input")
	}
	m, _ = update(t, m, keyRunes("Buy milk"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.adding || cmd == nil {
		t.Fatalf("enter should start an add")
	}
	if !strings.Contains(m.View(), "Adding...") {
		t.Fatalf("input should show progress while adding")
	}

	done := cmd()
	if msg, ok := done.(addDoneMsg); !ok || msg.err != nil {
		t.Fatalf("unexpected add result %#v", done)
	}
	m, _ = update(t, m, done)
	if m.adding || m.input.Value() != "" {
		t.Fatalf("input should be cleared after a successful add, got %q", m.input.Value())
	}

	items, err := repo.Fetch(ctx)
	if err != nil || len(items) != 1 || items[0].Title != "Buy milk" {
		t.Fatalf("expected stored item, got %+v (%v)", items, err)
	}
}

func TestAddBlankKeepsInput(t *testing.T) {
	m, repo, prompt := newTestModel(t)
	m, _ = update(t, m, keyRunes("a"))
	m, _ = update(t, m, keyRunes("   "))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	done := cmd()
	if msg := done.(addDoneMsg); !errors.Is(msg.err, todo.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", msg.err)
	}
	m, _ = update(t, m, done)
	if m.input.Value() != "   " {
		t.Fatalf("input should keep its text on validation failure")
	}
	if len(prompt.notices) != 1 || prompt.notices[0].Message != "Please enter a todo item" {
		t.Fatalf("unexpected notices %+v", prompt.notices)
	}
	items, _ := repo.Fetch(context.Background())
	if len(items) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestToastExpires(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := update(t, m, noticeMsg{Severity: todo.Success, Title: "Success", Message: "Todo added successfully!"})
	if cmd == nil || !strings.Contains(m.View(), "Todo added successfully!") {
		t.Fatalf("toast not shown")
	}
	m, _ = update(t, m, toastExpiredMsg{id: m.toast.id})
	if m.toast != nil || strings.Contains(m.View(), "Todo added successfully!") {
		t.Fatalf("toast should be gone")
	}
}

func TestCopyTitle(t *testing.T) {
	m, _, _ := newTestModel(t)
	var copied string
	m.copy = func(s string) error { copied = s; return nil }
	m, _ = update(t, m, sampleState())

	_, cmd := update(t, m, keyRunes("y"))
	if cmd == nil {
		t.Fatalf("expected copy command")
	}
	if msg := cmd(); msg.(clipboardMsg).err != nil {
		t.Fatalf("copy failed")
	}
	if copied != "Walk dog" {
		t.Fatalf("copied %q", copied)
	}
}

func TestCreatedLabel(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if createdLabel(time.Time{}, now) != "Just now" {
		t.Fatalf("zero time should read Just now")
	}
	if createdLabel(now.Add(-10*time.Second), now) != "Just now" {
		t.Fatalf("recent time should read Just now")
	}
	if got := createdLabel(now.Add(-48*time.Hour), now); got == "Just now" {
		t.Fatalf("old time should be a date, got %q", got)
	}
}

func TestPrompterWithoutProgram(t *testing.T) {
	p := NewPrompter()
	p.Notify(todo.Notice{Message: "held"})
	if p.Confirm(context.Background(), todo.Confirmation{}) {
		t.Fatalf("confirm without a program must refuse")
	}

	msgs := make(chan tea.Msg, 1)
	p.Attach(func(m tea.Msg) { msgs <- m })
	select {
	case msg := <-msgs:
		if n, ok := msg.(noticeMsg); !ok || n.Message != "held" {
			t.Fatalf("expected the held notice first, got %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("held notice was never delivered")
	}
	go func() {
		req := (<-msgs).(confirmRequestMsg)
		req.reply <- true
	}()
	if !p.Confirm(context.Background(), todo.Confirmation{Title: "Delete Todo"}) {
		t.Fatalf("expected the attached program's answer")
	}
}

func TestSubscriptionFailureReachesScreen(t *testing.T) {
	engine := jsonstore.OpenMemory()
	_ = engine.Close()
	client := docstore.NewClient(engine)
	repo := todo.NewRepository(client, "")

	// Same order as Run: the controller starts before a program is attached.
	prompt := NewPrompter()
	ctrl := todo.NewController(repo, prompt, nil)
	if err := ctrl.Activate(); err == nil {
		t.Fatalf("expected activate to fail on a closed store")
	}
	if ctrl.Active() {
		t.Fatalf("controller must not claim a subscription it does not have")
	}
	if s := ctrl.State(); s.Loading || s.Live {
		t.Fatalf("loading should end and live stay false: %+v", s)
	}

	msgs := make(chan tea.Msg, 4)
	prompt.Attach(func(m tea.Msg) { msgs <- m })
	var msg tea.Msg
	select {
	case msg = <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatalf("held notice was never delivered")
	}
	n, ok := msg.(noticeMsg)
	if !ok || n.Severity != todo.Error || n.Message != "Failed to sync todos" {
		t.Fatalf("unexpected message %#v", msg)
	}

	ui.SetColorForcing(false, true)
	m := New(context.Background(), ctrl, todo.NewActions(repo, prompt, nil))
	m, _ = update(t, m, msg)
	out := m.View()
	if !strings.Contains(out, "Failed to sync todos") || !strings.Contains(out, "Not syncing") {
		t.Fatalf("expected the failure on screen:\n%s", out)
	}
	if strings.Contains(out, "Loading todos...") {
		t.Fatalf("screen should not keep loading:\n%s", out)
	}
}

func TestErrorNoticeStaysUntilDismissed(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, sampleState())

	m, cmd := update(t, m, noticeMsg{Severity: todo.Error, Title: "Error", Message: "Failed to sync todos"})
	if cmd != nil {
		t.Fatalf("error notices must not expire")
	}
	m, _ = update(t, m, noticeMsg{Severity: todo.Error, Title: "Error", Message: "Failed to update todo"})
	m, _ = update(t, m, noticeMsg{Severity: todo.Success, Title: "Success", Message: "Todo added successfully!"})
	m, _ = update(t, m, toastExpiredMsg{id: m.toast.id})
	if !strings.Contains(m.View(), "Failed to sync todos") {
		t.Fatalf("error should stay on screen:\n%s", m.View())
	}

	m, _ = update(t, m, keyRunes("3"))
	if m.filter != model.All {
		t.Fatalf("keys behind the dialog should be ignored")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	out := m.View()
	if strings.Contains(out, "Failed to sync todos") || !strings.Contains(out, "Failed to update todo") {
		t.Fatalf("enter should move to the next error:\n%s", out)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.alerts) != 0 || strings.Contains(m.View(), "Failed to update todo") {
		t.Fatalf("all errors should be dismissed")
	}
}

func TestCursorFollowsItemAcrossPushes(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, sampleState())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if it, _ := m.selected(); it.ID != "1" {
		t.Fatalf("expected cursor on Buy milk, got %+v", it)
	}

	st := sampleState()
	st.Items = append([]model.Item{{ID: "3", Title: "Read book", CreatedAt: time.Now()}}, st.Items...)
	m, _ = update(t, m, st)
	if it, _ := m.selected(); it.ID != "1" {
		t.Fatalf("cursor moved to %+v after a push", it)
	}

	m, _ = update(t, m, keyRunes("2"))
	if m.list.Index() != 0 {
		t.Fatalf("changing filter should reset the cursor, got %d", m.list.Index())
	}
}
