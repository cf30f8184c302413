package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

// actions wires the mutation layer to the terminal.
func (app *App) actions(cmd *cobra.Command, s *session, assumeYes bool) *todo.Actions {
	prompt := newLinePrompter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), assumeYes)
	return todo.NewActions(s.repo, prompt, app.log)
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a todo (the title can be several words)",
		Args:  minArgs(1, "todo add <title...>"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			err = app.actions(cmd, s, false).Add(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, todo.ErrEmptyTitle) {
				return usageError{err: reported(err)}
			}
			return reported(err)
		},
	}
}

func newToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "toggle <index|id>",
		Aliases: []string{"done"},
		Short:   "Flip a todo between completed and not completed",
		Args:    exactArgs(1, "todo toggle <index|id>"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			it, err := resolve(cmd.Context(), s.repo, args[0])
			if err != nil {
				return err
			}
			msg, err := toggleItem(cmd.Context(), app.actions(cmd, s, false), it)
			if err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// toggleItem flips it and describes the result. The item may have been
// deleted since it was resolved.
func toggleItem(ctx context.Context, a *todo.Actions, it model.Item) (string, error) {
	found, err := a.Toggle(ctx, it.ID)
	if err != nil {
		return "", reported(err)
	}
	if !found {
		return "", errNotFound("todo", it.ID)
	}
	state := "completed"
	if it.Completed {
		state = "not completed"
	}
	return fmt.Sprintf("marked %s: %s", state, it.Title), nil
}

func newRemoveCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <index|id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo after confirmation",
		Args:    exactArgs(1, "todo rm <index|id> [--yes]"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			it, err := resolve(cmd.Context(), s.repo, args[0])
			if err != nil {
				return err
			}
			issued, err := app.actions(cmd, s, yes).Delete(cmd.Context(), it.ID)
			if err != nil {
				return reported(err)
			}
			if !issued {
				ui.Info(cmd.OutOrStdout(), "cancelled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCompleteAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "complete-all",
		Short: "Mark every todo as completed in one batch",
		Args:  exactArgs(0, "todo complete-all"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			items, err := s.repo.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch todos: %w", err)
			}
			return reported(app.actions(cmd, s, false).CompleteAll(cmd.Context(), items))
		},
	}
}

func newClearCompletedCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed todo in one batch",
		Args:  exactArgs(0, "todo clear-completed [--yes]"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			items, err := s.repo.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch todos: %w", err)
			}
			issued, err := app.actions(cmd, s, yes).ClearCompleted(cmd.Context(), items)
			if err != nil {
				return reported(err)
			}
			if !issued && len(model.Done(items)) > 0 {
				ui.Info(cmd.OutOrStdout(), "cancelled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
