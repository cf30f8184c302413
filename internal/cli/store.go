package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/docstore"
	"github.com/idilsaglam/todosync/internal/docstore/jsonstore"
	"github.com/idilsaglam/todosync/internal/docstore/remote"
	"github.com/idilsaglam/todosync/internal/docstore/sqlitestore"
	"github.com/idilsaglam/todosync/internal/todo"
)

const (
	storeSQLite = "sqlite"
	storeJSON   = "json"
	storeMemory = "memory"
)

// session is one opened store plus the repository on top of it.
type session struct {
	client *docstore.Client
	repo   *todo.Repository
}

func (s *session) Close() error { return s.client.Close() }

// closeStore closes c and reports its error through errp unless errp already
// holds one. A failed close can mean writes never reached disk.
func closeStore(c io.Closer, errp *error) {
	if cerr := c.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("close store: %w", cerr)
	}
}

func (app *App) open(ctx context.Context) (*session, error) {
	b, err := app.openBackend(ctx, true)
	if err != nil {
		return nil, err
	}
	c := docstore.NewClient(b)
	return &session{client: c, repo: todo.NewRepository(c, app.Collection)}, nil
}

// openBackend picks the engine from flags. allowRemote is false for serve,
// which must own its data.
func (app *App) openBackend(ctx context.Context, allowRemote bool) (docstore.Backend, error) {
	if app.Remote != "" {
		if !allowRemote {
			return nil, usageErrorf("--remote cannot be used here")
		}
		return app.openRemote()
	}
	switch strings.ToLower(app.Store) {
	case storeSQLite:
		path, err := app.dbPath("todo.db")
		if err != nil {
			return nil, err
		}
		st, err := sqlitestore.Open(ctx, path, sqlitestore.WithLogger(app.log))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		app.log.Debug("store opened", "engine", storeSQLite, "path", path)
		return st, nil
	case storeJSON:
		path, err := app.dbPath("todos.json")
		if err != nil {
			return nil, err
		}
		st, err := jsonstore.Open(path, jsonstore.WithLogger(app.log))
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		app.log.Debug("store opened", "engine", storeJSON, "path", path)
		return st, nil
	case storeMemory:
		return jsonstore.OpenMemory(), nil
	}
	return nil, usageErrorf("unknown store %q (want sqlite|json|memory)", app.Store)
}

func (app *App) openRemote() (docstore.Backend, error) {
	opts := []remote.ClientOption{remote.WithClientLogger(app.log)}
	ti, err := auth.GetToken()
	if err != nil {
		return nil, err
	}
	if ti != nil {
		opts = append(opts, remote.WithToken(ti.Token))
	}
	rc, err := remote.NewClient(app.Remote, opts...)
	if err != nil {
		return nil, usageError{err: err}
	}
	app.log.Debug("store opened", "engine", "remote", "url", app.Remote, "auth", ti != nil)
	return rc, nil
}

func (app *App) dbPath(name string) (string, error) {
	if app.DB != "" {
		return app.DB, nil
	}
	dir, err := auth.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
