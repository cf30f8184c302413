package todo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idilsaglam/todosync/internal/docstore"
	"github.com/idilsaglam/todosync/internal/model"
)

// DefaultCollection is where items live unless configured otherwise.
const DefaultCollection = "todos"

// Document field names.
const (
	fieldTitle     = "title"
	fieldCompleted = "completed"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Repository maps items onto documents of one collection.
type Repository struct {
	client *docstore.Client
	col    *docstore.CollectionRef
	now    func() time.Time
}

func NewRepository(c *docstore.Client, collection string) *Repository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Repository{client: c, col: c.Collection(collection), now: time.Now}
}

func (r *Repository) Collection() string { return r.col.Name() }

// ordered is every item, newest first.
func (r *Repository) ordered() docstore.Query {
	return r.col.OrderBy(fieldCreatedAt, docstore.Desc)
}

// Fetch reads the current item set once.
func (r *Repository) Fetch(ctx context.Context) ([]model.Item, error) {
	snap, err := r.ordered().Get(ctx)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(snap.Docs), nil
}

// Subscribe streams the full item set on every change until the returned
// function is called. It fails if the subscription cannot be opened.
func (r *Repository) Subscribe(onNext func([]model.Item), onError func(error)) (func(), error) {
	return r.ordered().Listen(
		func(s *docstore.QuerySnapshot) { onNext(r.decodeAll(s.Docs)) },
		onError,
	)
}

// Create stores a new, not completed item and returns its ID.
func (r *Repository) Create(ctx context.Context, title string) (string, error) {
	ref, err := r.col.Add(ctx, docstore.Fields{
		fieldTitle:     title,
		fieldCompleted: false,
		fieldCreatedAt: docstore.ServerTimestamp,
		fieldUpdatedAt: docstore.ServerTimestamp,
	})
	if err != nil {
		return "", err
	}
	return ref.ID(), nil
}

// Toggle reads the item and writes back the negated flag. The read and the
// write are separate calls, so concurrent toggles can overwrite each other.
// A missing item is left alone.
func (r *Repository) Toggle(ctx context.Context, id string) (completed bool, found bool, err error) {
	ref := r.col.Doc(id)
	doc, err := ref.Get(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	next := !doc.BoolField(fieldCompleted)
	if err := ref.Update(ctx, docstore.Fields{
		fieldCompleted: next,
		fieldUpdatedAt: docstore.ServerTimestamp,
	}); err != nil {
		return false, true, err
	}
	return next, true, nil
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.col.Doc(id).Delete(ctx)
}

// CompleteAll marks every incomplete item in items as completed in one
// batch. The batch is committed even when it is empty.
func (r *Repository) CompleteAll(ctx context.Context, items []model.Item) (int, error) {
	b := r.client.Batch()
	for _, it := range model.Incomplete(items) {
		b.Update(r.col.Doc(it.ID), docstore.Fields{
			fieldCompleted: true,
			fieldUpdatedAt: docstore.ServerTimestamp,
		})
	}
	if err := b.Commit(ctx); err != nil {
		return 0, fmt.Errorf("complete all: %w", err)
	}
	return b.Len(), nil
}

// RemoveCompleted deletes every completed item in items in one batch.
func (r *Repository) RemoveCompleted(ctx context.Context, items []model.Item) (int, error) {
	b := r.client.Batch()
	for _, it := range model.Done(items) {
		b.Delete(r.col.Doc(it.ID))
	}
	if err := b.Commit(ctx); err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return b.Len(), nil
}

func (r *Repository) decodeAll(docs []docstore.Document) []model.Item {
	out := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, r.decode(d))
	}
	return out
}

// decode fills gaps the way the list expects: no title is "", no flag is
// false, a missing creation time is "now".
func (r *Repository) decode(d docstore.Document) model.Item {
	it := model.Item{
		ID:        d.ID,
		Title:     d.StringField(fieldTitle),
		Completed: d.BoolField(fieldCompleted),
	}
	if t, ok := d.TimeField(fieldCreatedAt); ok {
		it.CreatedAt = t
	} else {
		it.CreatedAt = r.now().UTC()
	}
	if t, ok := d.TimeField(fieldUpdatedAt); ok {
		it.UpdatedAt = &t
	}
	return it
}
