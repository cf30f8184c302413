package docstore

import (
	"fmt"
	"time"
)

// Mutation is the resolved effect of one write on one document.
type Mutation struct {
	Doc     Document
	Deleted bool
}

// LookupFunc reads the committed state of a document.
type LookupFunc func(collection, id string) (Document, bool, error)

// Plan resolves writes against committed state and returns the final effect
// per touched document, in first-touch order. Later writes in the same batch
// see earlier ones. Nothing is applied if any write fails.
func Plan(writes []Write, commitTime time.Time, lookup LookupFunc) ([]Mutation, error) {
	type key struct{ collection, id string }
	staged := map[key]*Mutation{}
	var order []key

	current := func(k key) (Document, bool, error) {
		if m, ok := staged[k]; ok {
			return m.Doc, !m.Deleted, nil
		}
		return lookup(k.collection, k.id)
	}
	stage := func(k key, m Mutation) {
		if _, ok := staged[k]; !ok {
			order = append(order, k)
		}
		staged[k] = &m
	}

	for _, w := range writes {
		k := key{w.Collection, w.ID}
		doc, exists, err := current(k)
		if err != nil {
			return nil, err
		}
		switch w.Op {
		case OpCreate:
			if exists {
				return nil, fmt.Errorf("create %s/%s: %w", w.Collection, w.ID, ErrAlreadyExists)
			}
			stage(k, Mutation{Doc: Document{
				Collection: w.Collection,
				ID:         w.ID,
				Fields:     w.Fields.Resolve(commitTime),
				CreateTime: commitTime,
				UpdateTime: commitTime,
			}})
		case OpUpdate:
			if !exists {
				return nil, fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			doc.Fields = doc.Fields.Merge(w.Fields.Resolve(commitTime))
			doc.UpdateTime = commitTime
			stage(k, Mutation{Doc: doc})
		case OpDelete:
			if !exists {
				// Deleting a missing document succeeds without effect, but a
				// create staged earlier in this batch still has to be undone.
				if _, ok := staged[k]; !ok {
					continue
				}
			}
			stage(k, Mutation{Doc: Document{Collection: w.Collection, ID: w.ID}, Deleted: true})
		default:
			return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidArgument, w.Op)
		}
	}

	out := make([]Mutation, 0, len(order))
	for _, k := range order {
		out = append(out, *staged[k])
	}
	return out, nil
}
