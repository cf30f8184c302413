package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/format"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

type listOptions struct {
	Filter string
	Group  bool
	Format string
	Pretty bool
}

func (o *listOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.Filter, "filter", "all", "Which todos to show (all|completed|not-completed)")
	f.StringVar(&o.Format, "format", envOr("TODO_FORMAT", format.Text), "Output format (text|json|markdown)")
	f.BoolVar(&o.Pretty, "pretty", false, "Pretty-print JSON output")
	f.BoolVar(&o.Group, "group", false, "Group text output by not completed/completed")
}

func (o *listOptions) validate() (model.Filter, error) {
	flt, err := model.ParseFilter(o.Filter)
	if err != nil {
		return flt, usageError{err: err}
	}
	if !format.Valid(o.Format) {
		return flt, usageErrorf("unknown format %q (want text|json|markdown)", o.Format)
	}
	return flt, nil
}

// listOutput is the JSON shape of a listing.
type listOutput struct {
	Filter string       `json:"filter"`
	Stats  model.Stats  `json:"stats"`
	Items  []model.Item `json:"items"`
}

func newListCmd(app *App) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List todos, newest first",
		Args:    exactArgs(0, "todo ls [--filter f] [--format text|json|markdown]"),
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
			items, err := s.repo.Fetch(cmd.Context())
			if err != nil {
				app.log.Error("fetch todos", "error", err)
				return fmt.Errorf("fetch todos: %w", err)
			}
			return writeList(cmd.OutOrStdout(), items, flt, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// writeList renders items (the full, unfiltered set) in the chosen format.
// Index numbers always refer to the unfiltered order so they can be passed
// to toggle and rm.
func writeList(w io.Writer, items []model.Item, flt model.Filter, opts listOptions) error {
	visible := flt.Apply(items)
	switch opts.Format {
	case format.JSON:
		return format.WriteJSON(w, listOutput{
			Filter: flt.String(),
			Stats:  model.ComputeStats(items),
			Items:  visible,
		}, opts.Pretty)
	case format.Markdown:
		md := format.Checklist("My Todo List", visible)
		if isTerminal(w) {
			style := "dark"
			if ui.Current().Name == "mono" {
				style = "notty"
			}
			md = format.RenderMarkdown(md, 80, style)
		}
		_, err := io.WriteString(w, md)
		return err
	}

	t := ui.Current()
	st := model.ComputeStats(items)
	lines := []string{
		t.Title.Render("My Todo List"),
		fmt.Sprintf("Total: %d | Completed: %d | Not Completed: %d", st.Total, st.Completed, st.Pending),
		t.Muted.Render(ui.ProgressBar(st.Completed, st.Total, 28)),
		"",
	}
	pos := positions(items)
	if opts.Group {
		lines = append(lines, groupLines(visible, pos)...)
	} else {
		lines = append(lines, flatLines(visible, pos, flt)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(w, lines)
	return nil
}

func positions(items []model.Item) map[string]int {
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[it.ID] = i + 1
	}
	return pos
}

func flatLines(items []model.Item, pos map[string]int, flt model.Filter) []string {
	t := ui.Current()
	if len(items) == 0 {
		title, hint := flt.EmptyText()
		return []string{title, t.Muted.Render(hint)}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		idx := t.Muted.Render(fmt.Sprintf("%2d.", pos[it.ID]))
		box := t.Muted.Render(t.Checkbox(false))
		title := ansi.Truncate(it.Title, 80, "…")
		if it.Completed {
			box = t.Success.Render(t.Checkbox(true))
			title = t.Done.Render(title)
		}
		out = append(out, fmt.Sprintf("%s %s %s", idx, box, title))
	}
	return out
}

func groupLines(items []model.Item, pos map[string]int) []string {
	t := ui.Current()
	var lines []string
	for _, flt := range []model.Filter{model.NotCompleted, model.Completed} {
		group := flt.Apply(items)
		lines = append(lines, t.Accent.Render(flt.String()))
		if len(group) == 0 {
			lines = append(lines, t.Muted.Render("(none)"))
		} else {
			lines = append(lines, flatLines(group, pos, flt)...)
		}
		lines = append(lines, "")
	}
	return lines[:len(lines)-1]
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// resolve maps a 1-based index from `todo ls` or a document ID to an item.
func resolve(ctx context.Context, repo *todo.Repository, arg string) (model.Item, error) {
	items, err := repo.Fetch(ctx)
	if err != nil {
		return model.Item{}, fmt.Errorf("fetch todos: %w", err)
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(items) {
			return model.Item{}, usageErrorf("index out of range: have %d, got %d (run `todo ls` to see valid indexes)", len(items), n)
		}
		return items[n-1], nil
	}
	for _, it := range items {
		if it.ID == arg {
			return it, nil
		}
	}
	return model.Item{}, errNotFound("todo", arg)
}
