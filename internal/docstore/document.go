package docstore

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = errors.New("store closed")
)

// Document is a point-in-time copy of one stored document.
type Document struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Fields     Fields    `json:"fields"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// StringField returns the string stored under field, or "".
func (d Document) StringField(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// BoolField returns the bool stored under field, or false.
func (d Document) BoolField(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// TimeField returns the timestamp stored under field, if there is one.
func (d Document) TimeField(field string) (time.Time, bool) {
	t, ok := d.Fields[field].(time.Time)
	return t, ok
}

// Direction is the sort order of a query.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// QuerySpec describes an ordered read of one collection. Backends evaluate
// it for one-shot reads and for live listeners alike.
type QuerySpec struct {
	Collection string    `json:"collection"`
	OrderBy    string    `json:"orderBy,omitempty"`
	Direction  Direction `json:"direction"`
	Limit      int       `json:"limit,omitempty"`
}

// Evaluate filters, sorts and limits docs according to q. Documents that lack
// the ordering field are left out. Ties break on ID so results are stable.
func (q QuerySpec) Evaluate(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Collection != q.Collection {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := d.Fields[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := 0
		if q.OrderBy != "" {
			c = CompareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		}
		if c == 0 {
			c = cmpString(out[i].ID, out[j].ID)
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// WriteOp is the kind of a single write inside a commit.
type WriteOp string

const (
	OpCreate WriteOp = "create"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// Write is one document mutation. A commit applies all of its writes or none.
//
// Create fails with ErrAlreadyExists if the document exists, Update fails with
// ErrNotFound if it does not, Delete of a missing document is a no-op.
type Write struct {
	Op         WriteOp `json:"op"`
	Collection string  `json:"collection"`
	ID         string  `json:"id"`
	Fields     Fields  `json:"fields,omitempty"`
}

// Validate checks the write shape and normalises its fields.
func (w Write) Validate() (Write, error) {
	if w.Collection == "" || w.ID == "" {
		return w, ErrInvalidArgument
	}
	switch w.Op {
	case OpCreate, OpUpdate:
		f, err := w.Fields.Normalize()
		if err != nil {
			return w, err
		}
		w.Fields = f
	case OpDelete:
		w.Fields = nil
	default:
		return w, ErrInvalidArgument
	}
	return w, nil
}

// Collections returns the distinct collections touched by writes.
func Collections(writes []Write) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range writes {
		if !seen[w.Collection] {
			seen[w.Collection] = true
			out = append(out, w.Collection)
		}
	}
	return out
}
