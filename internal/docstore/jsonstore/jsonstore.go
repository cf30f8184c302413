package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/idilsaglam/todosync/internal/docstore"
)

// In-memory document engine. One goroutine owns the documents and serves
// every read and commit from a command channel, so there is no locking.
// With a path, each commit also schedules a write of the whole store to a
// single human-readable JSON file.

const fileVersion = 1

type docKey struct{ collection, id string }

// fileSnapshot is the on-disk format.
type fileSnapshot struct {
	Version   int                 `json:"version"`
	Documents []docstore.Document `json:"documents"`
}

type command struct {
	action     string
	collection string
	id         string
	query      docstore.QuerySpec
	writes     []docstore.Write
	reply      chan result
}

type result struct {
	doc        docstore.Document
	docs       []docstore.Document
	commitTime time.Time
	err        error
}

// Store implements docstore.Backend.
type Store struct {
	commands        chan command
	closed          chan struct{}
	persistRequests chan fileSnapshot
	persistDone     chan struct{}
	closeOnce       sync.Once
	closeErr        error

	path       string
	docs       map[docKey]docstore.Document
	lastCommit time.Time
	now        func() time.Time
	log        *slog.Logger

	hub *docstore.Hub
}

// Option tunes a Store.
type Option func(*Store)

// WithClock replaces time.Now for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger receives failures of background file writes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open loads path (if it exists) and starts the engine. An empty path gives
// a purely in-memory store.
func Open(path string, opts ...Option) (*Store, error) {
	docs, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		commands:        make(chan command),
		closed:          make(chan struct{}),
		persistRequests: make(chan fileSnapshot, 1),
		persistDone:     make(chan struct{}),
		path:            path,
		docs:            map[docKey]docstore.Document{},
		now:             time.Now,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	for _, d := range docs {
		s.docs[docKey{d.Collection, d.ID}] = d
		if d.UpdateTime.After(s.lastCommit) {
			s.lastCommit = d.UpdateTime
		}
	}
	s.hub = docstore.NewHub(s.RunQuery)
	go s.loop()
	go s.persistenceLoop()
	return s, nil
}

// OpenMemory returns an engine with no backing file.
func OpenMemory(opts ...Option) *Store {
	s, _ := Open("", opts...)
	return s
}

func (s *Store) Lookup(ctx context.Context, collection, id string) (docstore.Document, error) {
	r, err := s.do(ctx, command{action: "lookup", collection: collection, id: id})
	return r.doc, err
}

func (s *Store) RunQuery(ctx context.Context, q docstore.QuerySpec) ([]docstore.Document, error) {
	r, err := s.do(ctx, command{action: "query", query: q})
	return r.docs, err
}

func (s *Store) Commit(ctx context.Context, writes []docstore.Write) (time.Time, error) {
	r, err := s.do(ctx, command{action: "commit", writes: writes})
	return r.commitTime, err
}

func (s *Store) Listen(q docstore.QuerySpec, onNext func([]docstore.Document), onError func(error)) (func(), error) {
	return s.hub.Listen(q, onNext, onError)
}

// Close stops listeners and the engine, then writes the final state to disk.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.hub.Close()
		r, err := s.do(context.Background(), command{action: "close"})
		if err != nil {
			s.closeErr = err
			return
		}
		<-s.persistDone
		if s.path != "" {
			s.closeErr = Save(s.path, r.docs)
		}
	})
	return s.closeErr
}

func (s *Store) do(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case s.commands <- cmd:
	case <-s.closed:
		return result{}, docstore.ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	r := <-cmd.reply
	return r, r.err
}

// loop serialises every read and commit.
func (s *Store) loop() {
	for cmd := range s.commands {
		switch cmd.action {
		case "lookup":
			d, ok := s.docs[docKey{cmd.collection, cmd.id}]
			if !ok {
				cmd.reply <- result{err: fmt.Errorf("%s/%s: %w", cmd.collection, cmd.id, docstore.ErrNotFound)}
				continue
			}
			cmd.reply <- result{doc: cloneDoc(d)}
		case "query":
			cmd.reply <- result{docs: cmd.query.Evaluate(s.list(cmd.query.Collection))}
		case "commit":
			t, err := s.apply(cmd.writes)
			cmd.reply <- result{commitTime: t, err: err}
		case "close":
			close(s.closed)
			cmd.reply <- result{docs: s.list("")}
			return
		default:
			cmd.reply <- result{err: fmt.Errorf("unsupported action %s", cmd.action)}
		}
	}
}

func (s *Store) apply(writes []docstore.Write) (time.Time, error) {
	commitTime := s.nextCommitTime()
	muts, err := docstore.Plan(writes, commitTime, func(collection, id string) (docstore.Document, bool, error) {
		d, ok := s.docs[docKey{collection, id}]
		return cloneDoc(d), ok, nil
	})
	if err != nil {
		return time.Time{}, err
	}
	if len(muts) == 0 {
		return commitTime, nil
	}
	for _, m := range muts {
		k := docKey{m.Doc.Collection, m.Doc.ID}
		if m.Deleted {
			delete(s.docs, k)
			continue
		}
		s.docs[k] = m.Doc
	}
	s.lastCommit = commitTime
	s.queuePersist()
	s.hub.Notify(docstore.Collections(writes)...)
	return commitTime, nil
}

// nextCommitTime is strictly increasing so server timestamps order writes.
func (s *Store) nextCommitTime() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastCommit) {
		t = s.lastCommit.Add(time.Microsecond)
	}
	return t
}

// list returns copies of the documents in collection ("" = every collection).
func (s *Store) list(collection string) []docstore.Document {
	out := make([]docstore.Document, 0, len(s.docs))
	for k, d := range s.docs {
		if collection == "" || k.collection == collection {
			out = append(out, cloneDoc(d))
		}
	}
	return out
}

// ------- persistence -------

// persistenceLoop writes snapshots off the main loop.
func (s *Store) persistenceLoop() {
	defer close(s.persistDone)
	for {
		select {
		case snap := <-s.persistRequests:
			if err := writeFile(s.path, snap); err != nil {
				s.log.Error("persist json store", "path", s.path, "error", err)
			}
		case <-s.closed:
			return
		}
	}
}

// queuePersist replaces any pending snapshot with the current one.
func (s *Store) queuePersist() {
	if s.path == "" {
		return
	}
	snap := fileSnapshot{Version: fileVersion, Documents: s.list("")}
	select {
	case s.persistRequests <- snap:
	default:
		select {
		case <-s.persistRequests:
		default:
		}
		s.persistRequests <- snap
	}
}

// Load reads every document from path. A missing file is an empty store.
func Load(path string) ([]docstore.Document, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var snap fileSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if snap.Version > fileVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", path, snap.Version)
	}
	return snap.Documents, nil
}

// Save writes docs to path, replacing it atomically.
func Save(path string, docs []docstore.Document) error {
	return writeFile(path, fileSnapshot{Version: fileVersion, Documents: docs})
}

func writeFile(path string, snap fileSnapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".todos-*.json")
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func cloneDoc(d docstore.Document) docstore.Document {
	d.Fields = d.Fields.Clone()
	return d
}
