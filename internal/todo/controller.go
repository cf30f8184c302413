package todo

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/idilsaglam/todosync/internal/model"
)

// State is what the list view renders.
type State struct {
	Items      []model.Item
	Loading    bool
	Refreshing bool
	// Live is true while the subscription is open.
	Live bool
}

// Controller owns the local copy of the item list. The only writers are the
// live subscription and Refresh; both replace the list wholesale.
type Controller struct {
	repo   *Repository
	prompt Prompter
	log    *slog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	unsubscribe func()
	updates     chan State
}

func NewController(repo *Repository, prompt Prompter, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		repo:    repo,
		prompt:  prompt,
		log:     log,
		updates: make(chan State, 1),
	}
}

// Activate opens the live subscription. Calling it again while active does
// nothing. When the subscription cannot be opened the user is told, loading
// ends and the controller stays inactive.
func (c *Controller) Activate() error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	c.state.Loading = true
	c.publishLocked()
	c.mu.Unlock()

	unsubscribe, err := c.repo.Subscribe(
		func(items []model.Item) { c.onSnapshot(gen, items) },
		func(err error) { c.onError(gen, err) },
	)
	if err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.state.Loading = false
			c.publishLocked()
		}
		c.mu.Unlock()
		c.log.Error("open subscription", "collection", c.repo.Collection(), "error", err)
		c.prompt.Notify(Notice{Severity: Error, Title: "Error", Message: msgSyncFailed})
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		// Deactivated while subscribing.
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	c.state.Live = true
	c.publishLocked()
	c.mu.Unlock()
	c.log.Info("subscription opened", "collection", c.repo.Collection())
	return nil
}

// Deactivate cancels the subscription. Late pushes are dropped.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	c.generation++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.state.Live {
		c.state.Live = false
		c.publishLocked()
	}
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
		c.log.Info("subscription closed", "collection", c.repo.Collection())
	}
}

// Active reports whether a subscription is open.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribe != nil
}

func (c *Controller) onSnapshot(gen uint64, items []model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.state.Items = items
	c.state.Loading = false
	c.publishLocked()
}

func (c *Controller) onError(gen uint64, err error) {
	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return
	}
	c.log.Error("listener error", "collection", c.repo.Collection(), "error", err)
	c.prompt.Notify(Notice{Severity: Error, Title: "Error", Message: msgSyncFailed})
}

// Refresh replaces the list with a one-off read. Loading and Refreshing are
// cleared whatever the outcome.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.state.Refreshing = true
	c.publishLocked()
	c.mu.Unlock()

	items, err := c.repo.Fetch(ctx)

	c.mu.Lock()
	if err == nil {
		c.state.Items = items
	}
	c.state.Loading = false
	c.state.Refreshing = false
	c.publishLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Error("fetch todos", "collection", c.repo.Collection(), "error", err)
		c.prompt.Notify(Notice{Severity: Error, Title: "Error", Message: msgFetchFailed})
		return err
	}
	return nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Items returns a copy of the current item list.
func (c *Controller) Items() []model.Item { return c.State().Items }

// Updates yields the latest state after every change. Intermediate states
// may be skipped when the reader is slow.
func (c *Controller) Updates() <-chan State { return c.updates }

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Items = append([]model.Item(nil), c.state.Items...)
	return s
}

func (c *Controller) publishLocked() {
	s := c.snapshotLocked()
	select {
	case c.updates <- s:
	default:
		select {
		case <-c.updates:
		default:
		}
		c.updates <- s
	}
}
