package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/ui"
)

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the token used with --remote",
		Args:  exactArgs(0, "todo auth <login|logout|status|hash>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthLogoutCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	cmd.AddCommand(newAuthHashCmd(app))
	return cmd
}

func newAuthLoginCmd(app *App) *cobra.Command {
	var token, server string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token (read from stdin unless --token is given)",
		Args:  exactArgs(0, "todo auth login [--token t] [--server url]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if server == "" {
				server = app.Remote
			}
			if err := auth.SetToken(token, server); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			app.log.Info("token saved", "server", server)
			ui.OK(cmd.OutOrStdout(), "logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to save")
	cmd.Flags().StringVar(&server, "server", "", "Server the token belongs to (informational)")
	return cmd
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved token",
		Args:  exactArgs(0, "todo auth logout"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, _ := auth.GetToken()
			if ti != nil && ti.Source == "env" {
				ui.OK(cmd.OutOrStdout(), "token is provided by TODO_TOKEN env var (nothing to delete)")
				return nil
			}
			if err := auth.DeleteToken(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			app.log.Info("token deleted")
			ui.OK(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from",
		Args:  exactArgs(0, "todo auth status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, err := auth.GetToken()
			if err != nil {
				return err
			}
			if ti == nil {
				fmt.Fprintln(out, ui.Current().Muted.Render("not logged in"))
				fmt.Fprintln(out, "Run: todo auth login")
				return nil
			}
			fmt.Fprintf(out, "source: %s\n", ti.Source)
			if ti.Server != "" {
				fmt.Fprintf(out, "server: %s\n", ti.Server)
			}
			if !ti.CreatedAt.IsZero() {
				fmt.Fprintf(out, "saved: %s\n", ti.CreatedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newAuthHashCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <token>",
		Short: "Print the bcrypt hash to give `todo serve --token-hash`",
		Args:  exactArgs(1, "todo auth hash <token>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashToken(args[0])
			if err != nil {
				return usageError{err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
