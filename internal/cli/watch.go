package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/format"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		opts       listOptions
		maxUpdates int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the list every time it changes",
		Long:  "Keeps a live subscription open and prints the list on every change until interrupted.",
		Args:  exactArgs(0, "todo watch [--filter f] [--format text|json]"),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flt, err := opts.validate()
			if err != nil {
				return err
			}
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)

			out := cmd.OutOrStdout()
			prompt := newLinePrompter(cmd.InOrStdin(), out, cmd.ErrOrStderr(), false)
			ctrl := todo.NewController(s.repo, prompt, app.log)
			if err := ctrl.Activate(); err != nil {
				return reported(err)
			}
			defer ctrl.Deactivate()

			n := 0
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case st := <-ctrl.Updates():
					if st.Loading {
						continue
					}
					if n > 0 && opts.Format == format.Text {
						fmt.Fprintln(out, ui.Current().Muted.Render("updated "+time.Now().Format("15:04:05")))
					}
					if err := writeList(out, st.Items, flt, opts); err != nil {
						return err
					}
					n++
					if maxUpdates > 0 && n >= maxUpdates {
						return nil
					}
				}
			}
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&maxUpdates, "max-updates", 0, "Exit after this many listings (0 = run until interrupted)")
	return cmd
}
