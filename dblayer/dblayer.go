// Package dblayer packages up the typed document accesses the admin tools make.
//
// Every read goes to the store itself; nothing here caches.  Ordering of list
// results is left to the aggregate package, except for ownership history,
// which the store returns newest first.
package dblayer

import (
	"context"
	"errors"
	"fmt"

	"territory-admin/docstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Physical collection names.
const (
	UsersCollection       = "users"
	FeedCollection        = "feed"
	ActivitiesCollection  = "activities"
	TerritoriesCollection = "remote_territories"

	FollowersSubcollection = "followers"
	FollowingSubcollection = "following"
	OwnersSubcollection    = "owners"
)

var (
	ErrMissingID = errors.New("entity has no identifier")
	ErrNotFound  = errors.New("no document with that ID")
)

type DB struct {
	store docstore.Store
}

func New(store docstore.Store) *DB {
	return &DB{
		store: store,
	}
}

// Store exposes the underlying store for the workflow layer, which needs raw
// subcollection access and batches.
func (db *DB) Store() docstore.Store {
	return db.store
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("territory-admin/dblayer")
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

// fail records err on span and hands it back.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (db *DB) list(ctx context.Context, coll string, q docstore.Query) ([]*docstore.Document, error) {
	docs, err := db.store.Query(ctx, coll, q)
	if err != nil {
		return nil, fmt.Errorf("while querying %s: %w", coll, err)
	}
	return docs, nil
}

// ownedBy selects everything when ownerID is empty.
func ownedBy(ownerID string) docstore.Query {
	if ownerID == "" {
		return docstore.All
	}
	return docstore.WhereEquals("userId", ownerID)
}

func (db *DB) get(ctx context.Context, coll, id string) (*docstore.Document, bool, error) {
	if id == "" {
		return nil, false, ErrMissingID
	}
	doc, found, err := db.store.Get(ctx, coll, id)
	if err != nil {
		return nil, false, fmt.Errorf("while getting %s/%s: %w", coll, id, err)
	}
	return doc, found, nil
}

func (db *DB) create(ctx context.Context, coll string, fields map[string]any) (string, error) {
	id, err := db.store.Add(ctx, coll, fields)
	if err != nil {
		return "", fmt.Errorf("while adding to %s: %w", coll, err)
	}
	return id, nil
}

func (db *DB) update(ctx context.Context, coll, id string, fields map[string]any) error {
	if id == "" {
		return ErrMissingID
	}
	if err := db.store.SetMerge(ctx, coll, id, fields); err != nil {
		return fmt.Errorf("while updating %s/%s: %w", coll, id, err)
	}
	return nil
}

func (db *DB) delete(ctx context.Context, coll, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := db.store.Delete(ctx, coll, id); err != nil {
		return fmt.Errorf("while deleting %s/%s: %w", coll, id, err)
	}
	return nil
}

// Batch applies writes atomically.
func (db *DB) Batch(ctx context.Context, writes []docstore.Write) error {
	ctx, span := startSpan(ctx, "DB.Batch", attribute.Int("writes", len(writes)))
	defer span.End()

	if err := db.store.Batch(ctx, writes); err != nil {
		return fail(span, fmt.Errorf("while committing batch of %d writes: %w", len(writes), err))
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListSubcollectionIDs returns the IDs of every document under
// parentColl/parentID/name.  A subcollection that was never written is empty.
func (db *DB) ListSubcollectionIDs(ctx context.Context, parentColl, parentID, name string) ([]string, error) {
	ctx, span := startSpan(ctx, "DB.ListSubcollectionIDs",
		attribute.String("parent", parentColl+"/"+parentID),
		attribute.String("name", name))
	defer span.End()

	if parentID == "" {
		return nil, fail(span, ErrMissingID)
	}

	docs, err := db.list(ctx, docstore.Sub(parentColl, parentID, name), docstore.All)
	if err != nil {
		return nil, fail(span, err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// DeleteSubcollectionDoc removes one document from a subcollection.
func (db *DB) DeleteSubcollectionDoc(ctx context.Context, parentColl, parentID, name, id string) error {
	if parentID == "" {
		return ErrMissingID
	}
	return db.delete(ctx, docstore.Sub(parentColl, parentID, name), id)
}
