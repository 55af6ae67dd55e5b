package badgerstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"territory-admin/docstore"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func ids(docs []*docstore.Document) []string {
	out := []string{}
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	when := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.Add(ctx, "feed", map[string]any{
		"title":    "T",
		"xpEarned": 10,
		"date":     when,
		"nested":   map[string]any{"a": 1.5},
		"list":     []any{"x", int64(2)},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id == "" {
		t.Fatalf("Add returned an empty ID")
	}

	doc, found, err := s.Get(ctx, "feed", id)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("Document %s not found after Add", id)
	}

	want := map[string]any{
		"title":    "T",
		"xpEarned": int64(10),
		"date":     when,
		"nested":   map[string]any{"a": 1.5},
		"list":     []any{"x", int64(2)},
	}
	if diff := cmp.Diff(doc.Fields, want); diff != "" {
		t.Errorf("Bad fields; diff (-got +want)\n%s", diff)
	}
}

func TestGetAbsent(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.Get(context.Background(), "users", "nobody")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found {
		t.Errorf("Get reported an absent document as found")
	}
}

func TestSetMergeKeepsUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SetMerge(ctx, "users", "u1", map[string]any{
		"displayName": "Ana",
		"xp":          50,
		"stats":       map[string]any{"a": 1, "b": 2},
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.SetMerge(ctx, "users", "u1", map[string]any{
		"xp":    0,
		"stats": map[string]any{"b": 3},
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	doc, _, err := s.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := map[string]any{
		"displayName": "Ana",
		"xp":          int64(0),
		"stats":       map[string]any{"a": int64(1), "b": int64(3)},
	}
	if diff := cmp.Diff(doc.Fields, want); diff != "" {
		t.Errorf("Bad merged fields; diff (-got +want)\n%s", diff)
	}
}

func TestDeleteAbsentSucceeds(t *testing.T) {
	s := openTestStore(t)
	if err := s.Delete(context.Background(), "activities", "missing"); err != nil {
		t.Errorf("Deleting an absent document failed: %v", err)
	}
}

func TestQueryFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for id, fields := range map[string]map[string]any{
		"a": {"userId": "u1", "changedAt": base},
		"b": {"userId": "u1", "changedAt": base.Add(2 * time.Hour)},
		"c": {"userId": "u2", "changedAt": base.Add(time.Hour)},
		"d": {"userId": "u1"},
	} {
		if err := s.SetMerge(ctx, "things", id, fields); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	got, err := s.Query(ctx, "things", docstore.WhereEquals("userId", "u1"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ids(got), []string{"a", "b", "d"}); diff != "" {
		t.Errorf("Bad filtered IDs; diff (-got +want)\n%s", diff)
	}

	got, err = s.Query(ctx, "things", docstore.Query{OrderBy: &docstore.Order{Field: "changedAt", Descending: true}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ids(got), []string{"b", "c", "a"}); diff != "" {
		t.Errorf("Bad ordered IDs; diff (-got +want)\n%s", diff)
	}
}

func TestSubcollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SetMerge(ctx, "users", "u1", map[string]any{"displayName": "Ana"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.SetMerge(ctx, docstore.Sub("users", "u1", "followers"), "u2", map[string]any{"displayName": "Ben"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	users, err := s.Query(ctx, "users", docstore.All)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ids(users), []string{"u1"}); diff != "" {
		t.Errorf("Subcollection documents leaked into parent; diff (-got +want)\n%s", diff)
	}

	followers, err := s.Query(ctx, "users/u1/followers", docstore.All)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ids(followers), []string{"u2"}); diff != "" {
		t.Errorf("Bad subcollection contents; diff (-got +want)\n%s", diff)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Batch(ctx, []docstore.Write{
		{Coll: "users", ID: "u1", Fields: map[string]any{"xp": 1}},
		{Coll: "users", ID: "u2", Fields: map[string]any{"bad": struct{}{}}},
	})
	if !errors.Is(err, docstore.ErrUnsupportedValue) {
		t.Fatalf("Got error %v, want ErrUnsupportedValue", err)
	}

	if _, found, _ := s.Get(ctx, "users", "u1"); found {
		t.Errorf("First write of a failed batch was applied")
	}
}

func TestBatchRejectsDeleteWithoutID(t *testing.T) {
	s := openTestStore(t)
	err := s.Batch(context.Background(), []docstore.Write{{Coll: "users", Delete: true}})
	if !errors.Is(err, docstore.ErrEmptyID) {
		t.Errorf("Got error %v, want ErrEmptyID", err)
	}
}

func TestSubscribeDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SetMerge(ctx, "users", "u1", map[string]any{"xp": 1}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sub, err := s.Subscribe(ctx, "users")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer sub.Cancel()

	next := func() docstore.Snapshot {
		t.Helper()
		select {
		case snap := <-sub.C:
			return snap
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for snapshot")
		}
		return docstore.Snapshot{}
	}

	if diff := cmp.Diff(ids(next().Docs), []string{"u1"}); diff != "" {
		t.Errorf("Bad initial snapshot; diff (-got +want)\n%s", diff)
	}

	if err := s.SetMerge(ctx, "users", "u2", map[string]any{"xp": 2}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ids(next().Docs), []string{"u1", "u2"}); diff != "" {
		t.Errorf("Bad snapshot after write; diff (-got +want)\n%s", diff)
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	sub, err := s.Subscribe(context.Background(), "users")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sub.Cancel()
	sub.Cancel()

	for range sub.C {
		// Drain anything sent before cancellation.
	}

	var never *docstore.Subscription
	never.Cancel()
}
