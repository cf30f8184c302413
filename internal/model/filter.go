package model

import (
	"fmt"
	"strings"
)

// Filter selects which items the list shows. UI state only, never persisted.
type Filter int

const (
	All Filter = iota
	Completed
	NotCompleted
)

// Filters is the tab order used by the list view.
var Filters = []Filter{All, NotCompleted, Completed}

func (f Filter) String() string {
	switch f {
	case Completed:
		return "COMPLETED"
	case NotCompleted:
		return "NOT COMPLETED"
	default:
		return "ALL"
	}
}

// Next cycles through Filters in tab order.
func (f Filter) Next() Filter {
	for i, x := range Filters {
		if x == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return All
}

// Apply returns the subset of items matching f. Order is preserved and the
// input slice is never modified.
func (f Filter) Apply(items []Item) []Item {
	if f == All {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
	want := f == Completed
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Completed == want {
			out = append(out, it)
		}
	}
	return out
}

// ParseFilter accepts the CLI spellings as well as the display names.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "completed", "done":
		return Completed, nil
	case "not-completed", "not completed", "pending", "active":
		return NotCompleted, nil
	}
	return All, fmt.Errorf("unknown filter %q (want all|completed|not-completed)", s)
}

// EmptyText is the heading and hint shown when f matches nothing.
func (f Filter) EmptyText() (title, hint string) {
	if f == All {
		return "No todos yet!", "Add one above to get started"
	}
	return "No " + strings.ToLower(f.String()) + " todos", "Try a different filter"
}
