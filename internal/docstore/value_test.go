package docstore

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFields_JSONKeepsTypes(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 890, time.UTC)
	in := Fields{
		"title":     "Buy milk",
		"completed": false,
		"count":     3,
		"ratio":     0.5,
		"createdAt": ts,
		"updatedAt": ServerTimestamp,
		"note":      nil,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Fields
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, _ := out["count"].(int64); got != 3 {
		t.Fatalf("count: expected int64 3, got %#v", out["count"])
	}
	if got, _ := out["createdAt"].(time.Time); !got.Equal(ts) {
		t.Fatalf("createdAt: expected %v, got %#v", ts, out["createdAt"])
	}
	if !IsServerTimestamp(out["updatedAt"]) {
		t.Fatalf("updatedAt: expected sentinel, got %#v", out["updatedAt"])
	}
	if v, ok := out["note"]; !ok || v != nil {
		t.Fatalf("note: expected explicit nil, got %#v (present=%v)", v, ok)
	}
}

func TestFields_NormalizeRejectsUnsupported(t *testing.T) {
	_, err := Fields{"tags": []string{"a"}}.Normalize()
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFields_ResolveReplacesSentinelOnly(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Fields{"a": ServerTimestamp, "b": "x"}
	out := in.Resolve(now)
	if got, _ := out["a"].(time.Time); !got.Equal(now) {
		t.Fatalf("a: expected %v, got %#v", now, out["a"])
	}
	if out["b"] != "x" {
		t.Fatalf("b changed: %#v", out["b"])
	}
	if !IsServerTimestamp(in["a"]) {
		t.Fatalf("Resolve must not modify its receiver")
	}
}

func TestQuerySpec_EvaluateOrdersAndSkipsMissingField(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{Collection: "todos", ID: "old", Fields: Fields{"createdAt": t0}},
		{Collection: "todos", ID: "new", Fields: Fields{"createdAt": t0.Add(time.Hour)}},
		{Collection: "todos", ID: "nofield", Fields: Fields{}},
		{Collection: "other", ID: "elsewhere", Fields: Fields{"createdAt": t0.Add(2 * time.Hour)}},
	}
	got := QuerySpec{Collection: "todos", OrderBy: "createdAt", Direction: Desc}.Evaluate(docs)
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("unexpected result: %+v", got)
	}

	limited := QuerySpec{Collection: "todos", OrderBy: "createdAt", Direction: Asc, Limit: 1}.Evaluate(docs)
	if len(limited) != 1 || limited[0].ID != "old" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}

func TestCompareValues_CrossTypeOrder(t *testing.T) {
	ordered := []any{nil, false, true, int64(1), 1.5, time.Unix(0, 0).UTC(), "a"}
	for i := 0; i+1 < len(ordered); i++ {
		if c := CompareValues(ordered[i], ordered[i+1]); c >= 0 {
			t.Fatalf("expected %#v < %#v, got %d", ordered[i], ordered[i+1], c)
		}
	}
}

func TestPlan_BatchIsAllOrNothing(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := Document{Collection: "todos", ID: "a", Fields: Fields{"completed": false}}
	lookup := func(collection, id string) (Document, bool, error) {
		if id == "a" {
			return existing, true, nil
		}
		return Document{}, false, nil
	}

	_, err := Plan([]Write{
		{Op: OpUpdate, Collection: "todos", ID: "a", Fields: Fields{"completed": true}},
		{Op: OpUpdate, Collection: "todos", ID: "missing", Fields: Fields{"completed": true}},
	}, now, lookup)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	muts, err := Plan([]Write{
		{Op: OpUpdate, Collection: "todos", ID: "a", Fields: Fields{"completed": true, "updatedAt": ServerTimestamp}},
		{Op: OpDelete, Collection: "todos", ID: "missing"},
	}, now, lookup)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(muts) != 1 {
		t.Fatalf("expected 1 mutation (delete of missing doc is a no-op), got %d", len(muts))
	}
	if !muts[0].Doc.BoolField("completed") {
		t.Fatalf("expected completed=true after merge")
	}
	if ts, ok := muts[0].Doc.TimeField("updatedAt"); !ok || !ts.Equal(now) {
		t.Fatalf("expected updatedAt resolved to commit time, got %#v", muts[0].Doc.Fields["updatedAt"])
	}
}

func TestPlan_CreateThenDeleteInSameBatch(t *testing.T) {
	none := func(string, string) (Document, bool, error) { return Document{}, false, nil }
	muts, err := Plan([]Write{
		{Op: OpCreate, Collection: "todos", ID: "x", Fields: Fields{"title": "t"}},
		{Op: OpDelete, Collection: "todos", ID: "x"},
	}, time.Now(), none)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(muts) != 1 || !muts[0].Deleted {
		t.Fatalf("expected a single delete mutation, got %+v", muts)
	}
}
