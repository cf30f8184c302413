package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/ui"
)

// linePrompter reports notices on the terminal and asks y/N questions on in.
type linePrompter struct {
	out, errOut io.Writer
	in          *bufio.Reader
	assumeYes   bool

	mu sync.Mutex
}

func newLinePrompter(in io.Reader, out, errOut io.Writer, assumeYes bool) *linePrompter {
	return &linePrompter{out: out, errOut: errOut, in: bufio.NewReader(in), assumeYes: assumeYes}
}

func (p *linePrompter) Notify(n todo.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch n.Severity {
	case todo.Success:
		ui.OK(p.out, n.Message)
	case todo.Error:
		ui.Fail(p.errOut, n.Message)
	default:
		ui.Info(p.out, n.Message)
	}
}

func (p *linePrompter) Confirm(ctx context.Context, c todo.Confirmation) bool {
	if p.assumeYes {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	fmt.Fprintf(p.out, "%s: %s [y/N] ", ui.Current().Title.Render(c.Title), c.Message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
