package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/todo"
)

// Run opens the live list for repo and blocks until the user quits or ctx is
// cancelled. The subscription lives exactly as long as the screen.
func Run(ctx context.Context, repo *todo.Repository, log *slog.Logger, opts ...tea.ProgramOption) error {
	if log == nil {
		log = logging.Discard()
	}
	prompt := NewPrompter()
	ctrl := todo.NewController(repo, prompt, log)
	actions := todo.NewActions(repo, prompt, log)

	// A failure here is held by the prompter and shown once the program
	// starts; the refresh key retries.
	_ = ctrl.Activate()
	defer ctrl.Deactivate()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, ctrl, actions), opts...)
	prompt.Attach(p.Send)
	defer prompt.Attach(nil)

	log.Info("tui started", "collection", repo.Collection())
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Interrupted from outside; not a failure.
		return nil
	}
	return err
}
