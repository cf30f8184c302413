package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/docstore/remote"
	"github.com/idilsaglam/todosync/internal/ui"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, tokenHash, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Share the local store over HTTP with live updates",
		Args:  exactArgs(0, "todo serve [--addr host:port] [--token-hash hash]"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if token != "" && tokenHash != "" {
				return usageErrorf("--token and --token-hash are mutually exclusive")
			}
			if token != "" {
				h, err := auth.HashToken(token)
				if err != nil {
					return usageError{err: err}
				}
				tokenHash = h
			}
			b, err := app.openBackend(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore(b, &err)

			srv := remote.NewServer(b, remote.WithTokenHash(tokenHash), remote.WithServerLogger(app.log))
			mode := "open"
			if tokenHash != "" {
				mode = "token required"
			}
			ui.Info(cmd.OutOrStdout(), fmt.Sprintf("serving %s store on %s (%s)", app.Store, addr, mode))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("TODO_ADDR", ":8080"), "Listen address")
	cmd.Flags().StringVar(&tokenHash, "token-hash", envOr("TODO_SERVER_TOKEN_HASH", ""), "bcrypt hash of the accepted bearer token (see `todo auth hash`)")
	cmd.Flags().StringVar(&token, "token", "", "Accepted bearer token in clear text (hashed at startup)")
	return cmd
}
