package dblayer

import (
	"context"

	"territory-admin/dbtypes"
	"territory-admin/docstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FollowersPath is the collection of users following userID.
func FollowersPath(userID string) string {
	return docstore.Sub(UsersCollection, userID, FollowersSubcollection)
}

// FollowingPath is the collection of users that userID follows.
func FollowingPath(userID string) string {
	return docstore.Sub(UsersCollection, userID, FollowingSubcollection)
}

func (db *DB) listEdges(ctx context.Context, coll string) ([]*dbtypes.FollowRelationship, error) {
	docs, err := db.list(ctx, coll, docstore.All)
	if err != nil {
		return nil, err
	}
	edges := make([]*dbtypes.FollowRelationship, 0, len(docs))
	for _, doc := range docs {
		edges = append(edges, dbtypes.DecodeFollowRelationship(doc.ID, doc.Fields))
	}
	return edges, nil
}

func (db *DB) ListFollowers(ctx context.Context, userID string) ([]*dbtypes.FollowRelationship, error) {
	ctx, span := startSpan(ctx, "DB.ListFollowers", attribute.String("user", userID))
	defer span.End()

	if userID == "" {
		return nil, fail(span, ErrMissingID)
	}
	edges, err := db.listEdges(ctx, FollowersPath(userID))
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return edges, nil
}

func (db *DB) ListFollowing(ctx context.Context, userID string) ([]*dbtypes.FollowRelationship, error) {
	ctx, span := startSpan(ctx, "DB.ListFollowing", attribute.String("user", userID))
	defer span.End()

	if userID == "" {
		return nil, fail(span, ErrMissingID)
	}
	edges, err := db.listEdges(ctx, FollowingPath(userID))
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return edges, nil
}
