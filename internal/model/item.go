package model

import "time"

// Item is the domain model for a todo entry.
// The document store owns it; local copies are read-only projections.
type Item struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Stats is the count summary shown in the header.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// ComputeStats counts items; Pending is always Total - Completed.
func ComputeStats(items []Item) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		if it.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}

// Incomplete returns the items that still need doing, in order.
func Incomplete(items []Item) []Item { return NotCompleted.Apply(items) }

// Done returns the completed items, in order.
func Done(items []Item) []Item { return Completed.Apply(items) }
