package todo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/idilsaglam/todosync/internal/docstore"
	"github.com/idilsaglam/todosync/internal/docstore/jsonstore"
	"github.com/idilsaglam/todosync/internal/model"
)

var errInjected = errors.New("injected failure")

// recordingBackend wraps an in-memory engine and remembers every commit.
type recordingBackend struct {
	docstore.Backend

	mu         sync.Mutex
	commits    [][]docstore.Write
	failCommit bool
	failQuery  bool
	failListen bool
	listenErrs []func(error)
}

func (b *recordingBackend) Commit(ctx context.Context, writes []docstore.Write) (time.Time, error) {
	b.mu.Lock()
	b.commits = append(b.commits, append([]docstore.Write(nil), writes...))
	fail := b.failCommit
	b.mu.Unlock()
	if fail {
		return time.Time{}, errInjected
	}
	return b.Backend.Commit(ctx, writes)
}

func (b *recordingBackend) RunQuery(ctx context.Context, q docstore.QuerySpec) ([]docstore.Document, error) {
	b.mu.Lock()
	fail := b.failQuery
	b.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return b.Backend.RunQuery(ctx, q)
}

func (b *recordingBackend) Listen(q docstore.QuerySpec, onNext func([]docstore.Document), onError func(error)) (func(), error) {
	b.mu.Lock()
	fail := b.failListen
	if !fail {
		b.listenErrs = append(b.listenErrs, onError)
	}
	b.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return b.Backend.Listen(q, onNext, onError)
}

func (b *recordingBackend) Commits() [][]docstore.Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]docstore.Write(nil), b.commits...)
}

func (b *recordingBackend) setFailCommit(v bool) {
	b.mu.Lock()
	b.failCommit = v
	b.mu.Unlock()
}

func (b *recordingBackend) setFailQuery(v bool) {
	b.mu.Lock()
	b.failQuery = v
	b.mu.Unlock()
}

// breakListeners reports err to every listener opened so far.
func (b *recordingBackend) breakListeners(err error) {
	b.mu.Lock()
	fns := append(([]func(error))(nil), b.listenErrs...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// fakePrompter records notices and answers confirmations with answer.
type fakePrompter struct {
	mu       sync.Mutex
	answer   bool
	notices  []Notice
	confirms []Confirmation
}

func (p *fakePrompter) Notify(n Notice) {
	p.mu.Lock()
	p.notices = append(p.notices, n)
	p.mu.Unlock()
}

func (p *fakePrompter) Confirm(_ context.Context, c Confirmation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms = append(p.confirms, c)
	return p.answer
}

func (p *fakePrompter) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}

func (p *fakePrompter) Confirms() []Confirmation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Confirmation(nil), p.confirms...)
}

func (p *fakePrompter) last(t *testing.T) Notice {
	t.Helper()
	ns := p.Notices()
	if len(ns) == 0 {
		t.Fatalf("expected a notice, got none")
	}
	return ns[len(ns)-1]
}

type fixture struct {
	backend *recordingBackend
	client  *docstore.Client
	repo    *Repository
	prompt  *fakePrompter
	actions *Actions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := jsonstore.OpenMemory()
	rb := &recordingBackend{Backend: base}
	n := 0
	var mu sync.Mutex
	client := docstore.NewClient(rb, docstore.WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("todo-%d", n)
	}))
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRepository(client, "")
	prompt := &fakePrompter{answer: true}
	return &fixture{
		backend: rb,
		client:  client,
		repo:    repo,
		prompt:  prompt,
		actions: NewActions(repo, prompt, nil),
	}
}

// seed writes items directly, bypassing the actions.
func (f *fixture) seed(t *testing.T, titles []string, completed []bool) []model.Item {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := f.client.Batch()
	col := f.client.Collection(f.repo.Collection())
	for i, title := range titles {
		b.Create(col.Doc(fmt.Sprintf("seed-%d", i)), docstore.Fields{
			fieldTitle:     title,
			fieldCompleted: completed[i],
			fieldCreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	items, err := f.repo.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return items
}

func waitState(t *testing.T, c *Controller, want func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if s := c.State(); want(s) {
			return s
		}
		select {
		case <-c.Updates():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out; last state %+v", c.State())
			return State{}
		}
	}
}
