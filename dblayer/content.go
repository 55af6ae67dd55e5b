package dblayer

import (
	"context"

	"territory-admin/dbtypes"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ListFeedItems returns the feed items owned by ownerID, or every item when
// ownerID is empty.
func (db *DB) ListFeedItems(ctx context.Context, ownerID string) ([]*dbtypes.FeedItem, error) {
	ctx, span := startSpan(ctx, "DB.ListFeedItems", attribute.String("owner", ownerID))
	defer span.End()

	docs, err := db.list(ctx, FeedCollection, ownedBy(ownerID))
	if err != nil {
		return nil, fail(span, err)
	}

	items := make([]*dbtypes.FeedItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, dbtypes.DecodeFeedItem(doc.ID, doc.Fields))
	}
	span.SetStatus(codes.Ok, "")
	return items, nil
}

func (db *DB) GetFeedItem(ctx context.Context, id string) (*dbtypes.FeedItem, bool, error) {
	ctx, span := startSpan(ctx, "DB.GetFeedItem", attribute.String("id", id))
	defer span.End()

	doc, found, err := db.get(ctx, FeedCollection, id)
	if err != nil {
		return nil, false, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	if !found {
		return nil, false, nil
	}
	return dbtypes.DecodeFeedItem(doc.ID, doc.Fields), true, nil
}

func (db *DB) CreateFeedItem(ctx context.Context, f *dbtypes.FeedItem) (string, error) {
	ctx, span := startSpan(ctx, "DB.CreateFeedItem", attribute.String("owner", f.UserID))
	defer span.End()

	id, err := db.create(ctx, FeedCollection, f.Fields())
	if err != nil {
		return "", fail(span, err)
	}
	f.ID = id
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (db *DB) UpdateFeedItem(ctx context.Context, f *dbtypes.FeedItem) error {
	ctx, span := startSpan(ctx, "DB.UpdateFeedItem", attribute.String("id", f.ID))
	defer span.End()

	if err := db.update(ctx, FeedCollection, f.ID, f.Fields()); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (db *DB) DeleteFeedItem(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "DB.DeleteFeedItem", attribute.String("id", id))
	defer span.End()

	if err := db.delete(ctx, FeedCollection, id); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListActivities returns the sessions owned by ownerID, or every session when
// ownerID is empty.
func (db *DB) ListActivities(ctx context.Context, ownerID string) ([]*dbtypes.ActivitySession, error) {
	ctx, span := startSpan(ctx, "DB.ListActivities", attribute.String("owner", ownerID))
	defer span.End()

	docs, err := db.list(ctx, ActivitiesCollection, ownedBy(ownerID))
	if err != nil {
		return nil, fail(span, err)
	}

	sessions := make([]*dbtypes.ActivitySession, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, dbtypes.DecodeActivitySession(doc.ID, doc.Fields))
	}
	span.SetStatus(codes.Ok, "")
	return sessions, nil
}

func (db *DB) GetActivity(ctx context.Context, id string) (*dbtypes.ActivitySession, bool, error) {
	ctx, span := startSpan(ctx, "DB.GetActivity", attribute.String("id", id))
	defer span.End()

	doc, found, err := db.get(ctx, ActivitiesCollection, id)
	if err != nil {
		return nil, false, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	if !found {
		return nil, false, nil
	}
	return dbtypes.DecodeActivitySession(doc.ID, doc.Fields), true, nil
}

// CreateActivity is only used to seed data; sessions normally come from the
// game client.
func (db *DB) CreateActivity(ctx context.Context, a *dbtypes.ActivitySession) (string, error) {
	ctx, span := startSpan(ctx, "DB.CreateActivity", attribute.String("owner", a.UserID))
	defer span.End()

	id, err := db.create(ctx, ActivitiesCollection, a.Fields())
	if err != nil {
		return "", fail(span, err)
	}
	a.ID = id
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (db *DB) UpdateActivity(ctx context.Context, a *dbtypes.ActivitySession) error {
	ctx, span := startSpan(ctx, "DB.UpdateActivity", attribute.String("id", a.ID))
	defer span.End()

	if err := db.update(ctx, ActivitiesCollection, a.ID, a.Fields()); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteActivity removes only the session document.  Use the workflow package
// to take its subcollections with it.
func (db *DB) DeleteActivity(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "DB.DeleteActivity", attribute.String("id", id))
	defer span.End()

	if err := db.delete(ctx, ActivitiesCollection, id); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
