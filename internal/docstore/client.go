package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Client is the document-store handle the app talks to. It is safe for
// concurrent use as long as the Backend is.
type Client struct {
	backend Backend
	newID   func() string
}

// Option tunes a Client.
type Option func(*Client)

// WithIDGenerator replaces the UUID generator used for new document IDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *Client) { c.newID = fn }
}

func NewClient(b Backend, opts ...Option) *Client {
	c := &Client{
		backend: b,
		newID:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Backend() Backend { return c.backend }

func (c *Client) Close() error { return c.backend.Close() }

func (c *Client) Collection(name string) *CollectionRef {
	return &CollectionRef{client: c, name: name}
}

// Batch starts an atomic multi-document write.
func (c *Client) Batch() *WriteBatch { return &WriteBatch{client: c} }

// ------- collections -------

type CollectionRef struct {
	client *Client
	name   string
}

func (r *CollectionRef) Name() string { return r.name }

func (r *CollectionRef) Doc(id string) *DocRef {
	return &DocRef{client: r.client, collection: r.name, id: id}
}

// NewDoc returns a reference with a fresh store-assigned ID.
func (r *CollectionRef) NewDoc() *DocRef { return r.Doc(r.client.newID()) }

// Add creates a document with a new ID.
func (r *CollectionRef) Add(ctx context.Context, fields Fields) (*DocRef, error) {
	ref := r.NewDoc()
	if err := ref.Create(ctx, fields); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *CollectionRef) OrderBy(field string, dir Direction) Query {
	return Query{client: r.client, spec: QuerySpec{Collection: r.name, OrderBy: field, Direction: dir}}
}

// Query returns an unordered query over the whole collection (ordered by ID).
func (r *CollectionRef) Query() Query {
	return Query{client: r.client, spec: QuerySpec{Collection: r.name}}
}

// ------- documents -------

type DocRef struct {
	client     *Client
	collection string
	id         string
}

func (d *DocRef) ID() string         { return d.id }
func (d *DocRef) Collection() string { return d.collection }

func (d *DocRef) Get(ctx context.Context) (Document, error) {
	return d.client.backend.Lookup(ctx, d.collection, d.id)
}

func (d *DocRef) Create(ctx context.Context, fields Fields) error {
	_, err := d.client.commit(ctx, []Write{{Op: OpCreate, Collection: d.collection, ID: d.id, Fields: fields}})
	return err
}

// Update merges fields into an existing document.
func (d *DocRef) Update(ctx context.Context, fields Fields) error {
	_, err := d.client.commit(ctx, []Write{{Op: OpUpdate, Collection: d.collection, ID: d.id, Fields: fields}})
	return err
}

func (d *DocRef) Delete(ctx context.Context) error {
	_, err := d.client.commit(ctx, []Write{{Op: OpDelete, Collection: d.collection, ID: d.id}})
	return err
}

// ------- queries -------

// Query is an immutable query builder.
type Query struct {
	client *Client
	spec   QuerySpec
}

func (q Query) Spec() QuerySpec { return q.spec }

func (q Query) Limit(n int) Query {
	q.spec.Limit = n
	return q
}

// QuerySnapshot is the result of a query at ReadTime.
type QuerySnapshot struct {
	Docs     []Document
	ReadTime time.Time
}

func (s *QuerySnapshot) Size() int { return len(s.Docs) }

func (q Query) Get(ctx context.Context) (*QuerySnapshot, error) {
	docs, err := q.client.backend.RunQuery(ctx, q.spec)
	if err != nil {
		return nil, err
	}
	return &QuerySnapshot{Docs: docs, ReadTime: time.Now().UTC()}, nil
}

// Listen opens a live subscription. onNext receives the full result on every
// change and onError receives later listen failures. A failure to register
// is returned instead. The returned function cancels the subscription and is
// safe to call more than once.
func (q Query) Listen(onNext func(*QuerySnapshot), onError func(error)) (func(), error) {
	stop, err := q.client.backend.Listen(q.spec,
		func(docs []Document) {
			if onNext != nil {
				onNext(&QuerySnapshot{Docs: docs, ReadTime: time.Now().UTC()})
			}
		},
		onError,
	)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", q.spec.Collection, err)
	}
	return stop, nil
}

// OnSnapshot is Listen with registration failures sent to onError too.
func (q Query) OnSnapshot(onNext func(*QuerySnapshot), onError func(error)) func() {
	stop, err := q.Listen(onNext, onError)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return func() {}
	}
	return stop
}

// ------- batches -------

// WriteBatch collects writes and applies them in one atomic commit.
type WriteBatch struct {
	client *Client
	writes []Write
}

func (b *WriteBatch) Create(ref *DocRef, fields Fields) *WriteBatch {
	b.writes = append(b.writes, Write{Op: OpCreate, Collection: ref.collection, ID: ref.id, Fields: fields})
	return b
}

func (b *WriteBatch) Update(ref *DocRef, fields Fields) *WriteBatch {
	b.writes = append(b.writes, Write{Op: OpUpdate, Collection: ref.collection, ID: ref.id, Fields: fields})
	return b
}

func (b *WriteBatch) Delete(ref *DocRef) *WriteBatch {
	b.writes = append(b.writes, Write{Op: OpDelete, Collection: ref.collection, ID: ref.id})
	return b
}

func (b *WriteBatch) Len() int { return len(b.writes) }

// Commit applies every queued write or none. Empty batches are still sent.
func (b *WriteBatch) Commit(ctx context.Context) error {
	_, err := b.client.commit(ctx, b.writes)
	return err
}

func (c *Client) commit(ctx context.Context, writes []Write) (time.Time, error) {
	checked := make([]Write, 0, len(writes))
	for _, w := range writes {
		v, err := w.Validate()
		if err != nil {
			return time.Time{}, fmt.Errorf("%s %s/%s: %w", w.Op, w.Collection, w.ID, err)
		}
		checked = append(checked, v)
	}
	return c.backend.Commit(ctx, checked)
}
