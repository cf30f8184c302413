package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// FetchFunc evaluates a query against the engine's current state.
type FetchFunc func(ctx context.Context, q QuerySpec) ([]Document, error)

// Hub fans commit notifications out to live listeners. Each listener owns a
// goroutine and a one-slot kick channel, so a slow consumer skips straight to
// the latest result instead of queueing stale ones.
type Hub struct {
	fetch FetchFunc

	mu        sync.Mutex
	nextID    int
	listeners map[int]*listener
	closed    bool
}

type listener struct {
	q       QuerySpec
	onNext  func([]Document)
	onError func(error)

	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func NewHub(fetch FetchFunc) *Hub {
	return &Hub{fetch: fetch, listeners: map[int]*listener{}}
}

// Listen registers a listener and schedules its initial push.
func (h *Hub) Listen(q QuerySpec, onNext func([]Document), onError func(error)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{
		q:       q,
		onNext:  onNext,
		onError: onError,
		kick:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	l.poke()
	go l.run(h.fetch)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			l.stopped.Store(true)
			l.cancel()
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
	return stop, nil
}

// Notify wakes listeners on the given collections; no arguments wakes all of them.
func (h *Hub) Notify(collections ...string) {
	want := map[string]bool{}
	for _, c := range collections {
		want[c] = true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		if len(want) == 0 || want[l.q.Collection] {
			l.poke()
		}
	}
}

// Len reports the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close stops every listener. Later Listen calls fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, l := range h.listeners {
		l.stopped.Store(true)
		l.cancel()
		delete(h.listeners, id)
	}
}

func (l *listener) poke() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

func (l *listener) run(fetch FetchFunc) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.kick:
		}
		docs, err := fetch(l.ctx, l.q)
		if l.stopped.Load() {
			return
		}
		if err != nil {
			if l.onError != nil {
				l.onError(err)
			}
			continue
		}
		if l.onNext != nil {
			l.onNext(docs)
		}
	}
}
