package docstore

import (
	"context"
	"time"
)

// Backend is what a storage engine implements. Client wraps one and offers
// the collection/document/batch API on top.
type Backend interface {
	// Lookup returns ErrNotFound when the document does not exist.
	Lookup(ctx context.Context, collection, id string) (Document, error)
	RunQuery(ctx context.Context, q QuerySpec) ([]Document, error)
	// Commit applies writes atomically and returns the commit time used to
	// resolve ServerTimestamp values. An empty commit is valid.
	Commit(ctx context.Context, writes []Write) (time.Time, error)
	// Listen pushes the current result of q, then a fresh result every time
	// a commit touches q.Collection, until stop is called.
	Listen(q QuerySpec, onNext func([]Document), onError func(error)) (stop func(), err error)
	Close() error
}
