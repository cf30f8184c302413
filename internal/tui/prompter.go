package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todosync/internal/todo"
)

type noticeMsg todo.Notice

// confirmRequestMsg asks the UI to show a dialog; the answer goes to reply.
type confirmRequestMsg struct {
	todo.Confirmation
	reply chan bool
}

// Prompter delivers notices and confirmations to a running program. Notices
// raised before a program is attached are held and delivered on Attach;
// confirmations without a program are refused.
type Prompter struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []todo.Notice
}

func NewPrompter() *Prompter { return &Prompter{} }

// Attach routes messages to send, usually (*tea.Program).Send. nil detaches.
// Held notices are sent from a new goroutine since Send blocks until the
// program runs.
func (p *Prompter) Attach(send func(tea.Msg)) {
	p.mu.Lock()
	p.send = send
	var held []todo.Notice
	if send != nil {
		held, p.pending = p.pending, nil
	}
	p.mu.Unlock()
	if len(held) > 0 {
		go func() {
			for _, n := range held {
				send(noticeMsg(n))
			}
		}()
	}
}

func (p *Prompter) sender() func(tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send
}

func (p *Prompter) Notify(n todo.Notice) {
	p.mu.Lock()
	send := p.send
	if send == nil {
		p.pending = append(p.pending, n)
	}
	p.mu.Unlock()
	if send != nil {
		send(noticeMsg(n))
	}
}

// Confirm blocks until the dialog is answered or ctx is done.
func (p *Prompter) Confirm(ctx context.Context, c todo.Confirmation) bool {
	send := p.sender()
	if send == nil {
		return false
	}
	reply := make(chan bool, 1)
	send(confirmRequestMsg{Confirmation: c, reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}
