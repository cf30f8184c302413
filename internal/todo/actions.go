package todo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/idilsaglam/todosync/internal/model"
)

// ErrEmptyTitle is returned by Add for blank input; nothing is written.
var ErrEmptyTitle = errors.New("empty title")

// Severity classifies a Notice.
type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "Success"
	case Error:
		return "Error"
	default:
		return "Info"
	}
}

// Notice is a user-visible message.
type Notice struct {
	Severity Severity
	Title    string
	Message  string
}

// Confirmation asks the user to approve a destructive action.
type Confirmation struct {
	Title        string
	Message      string
	ConfirmLabel string
}

// Prompter is how actions talk to the user. Confirm blocks until the user
// answers; false means cancel.
type Prompter interface {
	Notify(n Notice)
	Confirm(ctx context.Context, c Confirmation) bool
}

// User-facing copy.
const (
	msgEmptyTitle     = "Please enter a todo item"
	msgAdded          = "Todo added successfully!"
	msgAddFailed      = "Failed to add todo"
	msgUpdateFailed   = "Failed to update todo"
	msgDeleteTitle    = "Delete Todo"
	msgDeleteConfirm  = "Are you sure you want to delete this todo?"
	msgDeleted        = "Todo deleted successfully!"
	msgDeleteFailed   = "Failed to delete todo"
	msgAllCompleted   = "All todos marked as completed!"
	msgBatchFailed    = "Failed to update todos"
	msgNothingToClear = "No completed todos to clear"
	msgClearTitle     = "Clear Completed"
	msgCleared        = "Completed todos cleared!"
	msgClearFailed    = "Failed to clear completed todos"
	msgSyncFailed     = "Failed to sync todos"
	msgFetchFailed    = "Failed to fetch todos"
)

// Actions are the mutations a user can trigger. None of them touches the
// local item list; the live subscription brings every change back.
type Actions struct {
	repo   *Repository
	prompt Prompter
	log    *slog.Logger
}

func NewActions(repo *Repository, prompt Prompter, log *slog.Logger) *Actions {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Actions{repo: repo, prompt: prompt, log: log}
}

func (a *Actions) fail(op, msg string, err error) {
	a.log.Error(op, "collection", a.repo.Collection(), "error", err)
	a.prompt.Notify(Notice{Severity: Error, Title: "Error", Message: msg})
}

// Add validates text and creates a new item. On success the caller should
// clear its input.
func (a *Actions) Add(ctx context.Context, text string) error {
	title := strings.TrimSpace(text)
	if title == "" {
		a.prompt.Notify(Notice{Severity: Error, Title: "Error", Message: msgEmptyTitle})
		return ErrEmptyTitle
	}
	id, err := a.repo.Create(ctx, title)
	if err != nil {
		a.fail("add todo", msgAddFailed, err)
		return err
	}
	a.log.Info("todo added", "id", id)
	a.prompt.Notify(Notice{Severity: Success, Title: "Success", Message: msgAdded})
	return nil
}

// Toggle flips the completed flag of one item. It reports whether the item
// existed; a missing item is left alone and is not an error.
func (a *Actions) Toggle(ctx context.Context, id string) (bool, error) {
	completed, found, err := a.repo.Toggle(ctx, id)
	if err != nil {
		a.fail("toggle todo", msgUpdateFailed, err)
		return found, err
	}
	if !found {
		a.log.Warn("toggle of missing todo", "id", id)
		return false, nil
	}
	a.log.Info("todo toggled", "id", id, "completed", completed)
	return true, nil
}

// Delete asks for confirmation, then removes one item. It reports whether
// the delete was issued.
func (a *Actions) Delete(ctx context.Context, id string) (bool, error) {
	ok := a.prompt.Confirm(ctx, Confirmation{
		Title:        msgDeleteTitle,
		Message:      msgDeleteConfirm,
		ConfirmLabel: "Delete",
	})
	if !ok {
		return false, nil
	}
	if err := a.repo.Remove(ctx, id); err != nil {
		a.fail("delete todo", msgDeleteFailed, err)
		return true, err
	}
	a.log.Info("todo deleted", "id", id)
	a.prompt.Notify(Notice{Severity: Success, Title: "Success", Message: msgDeleted})
	return true, nil
}

// CompleteAll marks every incomplete item in items as completed in one batch.
func (a *Actions) CompleteAll(ctx context.Context, items []model.Item) error {
	n, err := a.repo.CompleteAll(ctx, items)
	if err != nil {
		a.fail("batch update", msgBatchFailed, err)
		return err
	}
	a.log.Info("todos completed", "count", n)
	a.prompt.Notify(Notice{Severity: Success, Title: "Success", Message: msgAllCompleted})
	return nil
}

// ClearCompleted deletes every completed item in items after confirmation.
// With nothing to clear it only informs the user. It reports whether the
// batch was issued.
func (a *Actions) ClearCompleted(ctx context.Context, items []model.Item) (bool, error) {
	done := model.Done(items)
	if len(done) == 0 {
		a.prompt.Notify(Notice{Severity: Info, Title: "Info", Message: msgNothingToClear})
		return false, nil
	}
	ok := a.prompt.Confirm(ctx, Confirmation{
		Title:        msgClearTitle,
		Message:      fmt.Sprintf("Delete %d completed todo(s)?", len(done)),
		ConfirmLabel: "Delete",
	})
	if !ok {
		return false, nil
	}
	n, err := a.repo.RemoveCompleted(ctx, done)
	if err != nil {
		a.fail("batch delete", msgClearFailed, err)
		return true, err
	}
	a.log.Info("completed todos cleared", "count", n)
	a.prompt.Notify(Notice{Severity: Success, Title: "Success", Message: msgCleared})
	return true, nil
}
