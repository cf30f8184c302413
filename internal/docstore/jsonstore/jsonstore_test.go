package jsonstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/idilsaglam/todosync/internal/docstore"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todos.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Commit(ctx, []docstore.Write{{
		Op: docstore.OpCreate, Collection: "todos", ID: "a",
		Fields: docstore.Fields{"title": "Buy milk", "createdAt": docstore.ServerTimestamp},
	}}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected data file: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	d, err := s2.Lookup(ctx, "todos", "a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if d.StringField("title") != "Buy milk" {
		t.Fatalf("unexpected title %q", d.StringField("title"))
	}
	if _, ok := d.TimeField("createdAt"); !ok {
		t.Fatalf("createdAt lost its timestamp type: %#v", d.Fields["createdAt"])
	}
}

func TestStore_CommitTimesStrictlyIncrease(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := OpenMemory(WithClock(func() time.Time { return fixed }))
	defer s.Close()

	ctx := context.Background()
	t1, err := s.Commit(ctx, []docstore.Write{{Op: docstore.OpCreate, Collection: "todos", ID: "a"}})
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}
	t2, err := s.Commit(ctx, []docstore.Write{{Op: docstore.OpCreate, Collection: "todos", ID: "b"}})
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}
	if !t2.After(t1) {
		t.Fatalf("expected increasing commit times, got %v then %v", t1, t2)
	}
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	s := OpenMemory()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.RunQuery(context.Background(), docstore.QuerySpec{Collection: "todos"}); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	docs, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
}

func TestLoad_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for corrupt file")
	}
}

// syncBuffer is a log sink safe to read while the store writes to it.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (w *syncBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b.Write(p)
}

func (w *syncBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b.String()
}

func TestStore_FailedFileWriteIsLoggedAndReturnedOnClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "todos.json")
	var logs syncBuffer

	s, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// A regular file where the directory should be makes every write fail.
	if err := os.WriteFile(filepath.Join(dir, "sub"), nil, 0o644); err != nil {
		t.Fatalf("block dir: %v", err)
	}
	if _, err := s.Commit(ctx, []docstore.Write{{
		Op: docstore.OpCreate, Collection: "todos", ID: "a",
		Fields: docstore.Fields{"title": "Buy milk"},
	}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "persist json store") {
		if time.Now().After(deadline) {
			t.Fatalf("background write failure was not logged; logs:\n%s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Close(); err == nil {
		t.Fatalf("close should report that the file could not be written")
	}
}
