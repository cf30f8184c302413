package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/idilsaglam/todosync/internal/docstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		create_time_unixns INTEGER NOT NULL,
		update_time_unixns INTEGER NOT NULL,
		PRIMARY KEY(collection, id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_update ON documents(update_time_unixns);`,
}

const schemaVersion = "1"

type docRow struct {
	Collection string `db:"collection"`
	ID         string `db:"id"`
	FieldsJSON string `db:"fields_json"`
	CreateTime int64  `db:"create_time_unixns"`
	UpdateTime int64  `db:"update_time_unixns"`
}

// Store implements docstore.Backend on a SQLite file. Commits are single
// transactions. Other processes writing the same file are noticed through
// fsnotify and PRAGMA data_version, so live listeners see their changes too.
type Store struct {
	db   *sqlx.DB
	path string
	hub  *docstore.Hub
	now  func() time.Time
	log  *slog.Logger

	watch    bool
	watcher  *fsnotify.Watcher
	probe    *sqlx.Conn
	lastSeen int64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Option tunes a Store.
type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithoutWatcher disables cross-process change detection.
func WithoutWatcher() Option { return func(s *Store) { s.watch = false } }

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open creates (if needed) and opens the database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:  path,
		now:   time.Now,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		watch: true,
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s.db = db
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.hub = docstore.NewHub(s.RunQuery)
	if s.watch {
		if err := s.startWatcher(ctx); err != nil {
			s.log.Warn("cross-process updates disabled", "path", path, "error", err)
		}
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, st := range schema {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT v FROM meta WHERE k = 'schema_version'`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `INSERT INTO meta(k, v) VALUES('schema_version', ?)`, schemaVersion)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	case err != nil:
		return fmt.Errorf("migrate: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("%s: unsupported schema version %s", s.path, v)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, collection, id string) (docstore.Document, error) {
	var row docRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("lookup: %w", err)
	}
	return row.decode()
}

func (s *Store) RunQuery(ctx context.Context, q docstore.QuerySpec) ([]docstore.Document, error) {
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM documents WHERE collection = ?`, q.Collection); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.decode()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return q.Evaluate(docs), nil
}

func (s *Store) Commit(ctx context.Context, writes []docstore.Write) (time.Time, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The write lock is held from here on, so the latest stored update time
	// is stable and commit times stay increasing across processes.
	var last sql.NullInt64
	if err := tx.GetContext(ctx, &last, `SELECT MAX(update_time_unixns) FROM documents`); err != nil {
		return time.Time{}, fmt.Errorf("commit: %w", err)
	}
	commitTime := s.now().UTC()
	if last.Valid && commitTime.UnixNano() <= last.Int64 {
		commitTime = time.Unix(0, last.Int64).UTC().Add(time.Microsecond)
	}

	muts, err := docstore.Plan(writes, commitTime, func(collection, id string) (docstore.Document, bool, error) {
		var row docRow
		err := tx.GetContext(ctx, &row, `SELECT * FROM documents WHERE collection = ? AND id = ?`, collection, id)
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, false, nil
		}
		if err != nil {
			return docstore.Document{}, false, err
		}
		d, err := row.decode()
		return d, err == nil, err
	})
	if err != nil {
		return time.Time{}, err
	}

	for _, m := range muts {
		if m.Deleted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, m.Doc.Collection, m.Doc.ID); err != nil {
				return time.Time{}, fmt.Errorf("delete %s/%s: %w", m.Doc.Collection, m.Doc.ID, err)
			}
			continue
		}
		row, err := encodeRow(m.Doc)
		if err != nil {
			return time.Time{}, err
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO documents(collection, id, fields_json, create_time_unixns, update_time_unixns)
			VALUES(:collection, :id, :fields_json, :create_time_unixns, :update_time_unixns)
			ON CONFLICT(collection, id) DO UPDATE SET
				fields_json = excluded.fields_json,
				update_time_unixns = excluded.update_time_unixns
		`, row); err != nil {
			return time.Time{}, fmt.Errorf("write %s/%s: %w", m.Doc.Collection, m.Doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit: %w", err)
	}
	if len(muts) > 0 {
		s.hub.Notify(docstore.Collections(writes)...)
	}
	return commitTime, nil
}

func (s *Store) Listen(q docstore.QuerySpec, onNext func([]docstore.Document), onError func(error)) (func(), error) {
	return s.hub.Listen(q, onNext, onError)
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.hub.Close()
		close(s.done)
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		s.wg.Wait()
		if s.probe != nil {
			_ = s.probe.Close()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// ------- cross-process change detection -------

func (s *Store) startWatcher(ctx context.Context) error {
	probe, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	if err := probe.GetContext(ctx, &s.lastSeen, `PRAGMA data_version`); err != nil {
		_ = probe.Close()
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		_ = probe.Close()
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		_ = probe.Close()
		return err
	}
	s.probe = probe
	s.watcher = w
	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

const settleDelay = 50 * time.Millisecond

func (s *Store) watchLoop() {
	defer s.wg.Done()
	base := filepath.Base(s.path)
	var settle <-chan time.Time
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) || !ev.Has(fsnotify.Write) {
				continue
			}
			if settle == nil {
				settle = time.After(settleDelay)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watch sqlite file", "path", s.path, "error", err)
		case <-settle:
			settle = nil
			s.checkDataVersion()
		}
	}
}

// checkDataVersion wakes every listener when another connection committed.
func (s *Store) checkDataVersion() {
	var v int64
	if err := s.probe.GetContext(context.Background(), &v, `PRAGMA data_version`); err != nil {
		s.log.Warn("read data_version", "path", s.path, "error", err)
		return
	}
	if v == s.lastSeen {
		return
	}
	s.lastSeen = v
	s.log.Debug("external change detected", "path", s.path)
	s.hub.Notify()
}

// ------- row codec -------

func encodeRow(d docstore.Document) (docRow, error) {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return docRow{}, fmt.Errorf("encode %s/%s: %w", d.Collection, d.ID, err)
	}
	return docRow{
		Collection: d.Collection,
		ID:         d.ID,
		FieldsJSON: string(b),
		CreateTime: d.CreateTime.UnixNano(),
		UpdateTime: d.UpdateTime.UnixNano(),
	}, nil
}

func (r docRow) decode() (docstore.Document, error) {
	var f docstore.Fields
	if err := json.Unmarshal([]byte(r.FieldsJSON), &f); err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return docstore.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Fields:     f,
		CreateTime: time.Unix(0, r.CreateTime).UTC(),
		UpdateTime: time.Unix(0, r.UpdateTime).UTC(),
	}, nil
}
