package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"territory-admin/dblayer"
	"territory-admin/dbtypes"
	"territory-admin/docstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CloseWeeklyRanking ranks users by XP, highest first, and stores each
// user's 1-based position as previousRank in one atomic batch.  No other
// field is written.  Users with
// equal XP keep their listed order, so the earlier one gets the better rank.
//
// The users are updated in place.  The returned slice is in rank order.
func (r *Runner) CloseWeeklyRanking(ctx context.Context, users []*dbtypes.User) ([]*dbtypes.User, error) {
	ctx, span := startSpan(ctx, "Runner.CloseWeeklyRanking", attribute.Int("users", len(users)))
	defer span.End()

	for _, u := range users {
		if u.ID == "" {
			return nil, fail(span, dblayer.ErrMissingID)
		}
	}
	if len(users) == 0 {
		span.SetStatus(codes.Ok, "")
		return []*dbtypes.User{}, nil
	}

	ranked := make([]*dbtypes.User, len(users))
	copy(ranked, users)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].XP > ranked[j].XP
	})

	writes := make([]docstore.Write, 0, len(ranked))
	for i, u := range ranked {
		rank := int64(i + 1)
		u.PreviousRank = &rank
		writes = append(writes, docstore.Write{
			Coll:   dblayer.UsersCollection,
			ID:     u.ID,
			Fields: map[string]any{"previousRank": rank},
			Merge:  true,
		})
	}

	if err := r.db.Batch(ctx, writes); err != nil {
		return nil, fail(span, fmt.Errorf("while writing ranks: %w", err))
	}

	slog.InfoContext(ctx, "Closed weekly ranking", slog.Int("users", len(ranked)))
	span.SetStatus(codes.Ok, "")
	return ranked, nil
}

func pairedBatch(ctx context.Context, db *dblayer.DB, writes []docstore.Write) error {
	if err := db.Batch(ctx, writes); err != nil {
		return fmt.Errorf("%w: %w", ErrPairedWrite, err)
	}
	return nil
}

// Follow records that user follows target, on both sides of the edge.  Each
// side snapshots the other user's display name and avatar.
func (r *Runner) Follow(ctx context.Context, user, target *dbtypes.User) error {
	ctx, span := startSpan(ctx, "Runner.Follow",
		attribute.String("user", user.ID),
		attribute.String("target", target.ID))
	defer span.End()

	if user.ID == "" || target.ID == "" {
		return fail(span, dblayer.ErrMissingID)
	}
	if user.ID == target.ID {
		return fail(span, ErrSelfFollow)
	}

	now := dbtypes.Now()
	following := dbtypes.EdgeTo(target, now)
	follower := dbtypes.EdgeTo(user, now)

	err := pairedBatch(ctx, r.db, []docstore.Write{
		{Coll: dblayer.FollowingPath(user.ID), ID: target.ID, Fields: following.Fields()},
		{Coll: dblayer.FollowersPath(target.ID), ID: user.ID, Fields: follower.Fields()},
	})
	if err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Unfollow removes both sides of the userID -> targetID edge.
func (r *Runner) Unfollow(ctx context.Context, userID, targetID string) error {
	ctx, span := startSpan(ctx, "Runner.Unfollow",
		attribute.String("user", userID),
		attribute.String("target", targetID))
	defer span.End()

	if userID == "" || targetID == "" {
		return fail(span, dblayer.ErrMissingID)
	}

	err := pairedBatch(ctx, r.db, []docstore.Write{
		{Coll: dblayer.FollowingPath(userID), ID: targetID, Delete: true},
		{Coll: dblayer.FollowersPath(targetID), ID: userID, Delete: true},
	})
	if err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// RemoveFollower removes both sides of the followerID -> userID edge.
func (r *Runner) RemoveFollower(ctx context.Context, userID, followerID string) error {
	ctx, span := startSpan(ctx, "Runner.RemoveFollower",
		attribute.String("user", userID),
		attribute.String("follower", followerID))
	defer span.End()

	if userID == "" || followerID == "" {
		return fail(span, dblayer.ErrMissingID)
	}

	err := pairedBatch(ctx, r.db, []docstore.Write{
		{Coll: dblayer.FollowersPath(userID), ID: followerID, Delete: true},
		{Coll: dblayer.FollowingPath(followerID), ID: userID, Delete: true},
	})
	if err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// TransferTerritory hands t to newUserID and appends the change to its
// history in the same batch.  changeType defaults to an admin transfer.
func (r *Runner) TransferTerritory(ctx context.Context, t *dbtypes.RemoteTerritory, newUserID, changeType string) (*dbtypes.TerritoryChange, error) {
	ctx, span := startSpan(ctx, "Runner.TransferTerritory",
		attribute.String("id", t.ID),
		attribute.String("to", newUserID))
	defer span.End()

	if t.ID == "" || newUserID == "" {
		return nil, fail(span, dblayer.ErrMissingID)
	}
	if changeType == "" {
		changeType = dbtypes.ChangeTypeAdminTransfer
	}

	territoryID := t.ID
	previous := t.UserID
	expires := t.ExpiresAt
	change := &dbtypes.TerritoryChange{
		TerritoryID:    &territoryID,
		ChangeType:     changeType,
		ChangedAt:      dbtypes.Now(),
		ActivityEndAt:  t.ActivityEndAt,
		ExpiresAt:      &expires,
		NewUserID:      &newUserID,
		PreviousUserID: &previous,
	}

	err := r.db.Batch(ctx, []docstore.Write{
		{
			Coll:   dblayer.TerritoriesCollection,
			ID:     t.ID,
			Fields: map[string]any{"userId": newUserID},
			Merge:  true,
		},
		{
			Coll:   docstore.Sub(dblayer.TerritoriesCollection, t.ID, dblayer.OwnersSubcollection),
			Fields: change.Fields(),
		},
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("while transferring territory: %w", err))
	}
	t.UserID = newUserID

	slog.InfoContext(ctx, "Transferred territory",
		slog.String("id", t.ID),
		slog.String("from", previous),
		slog.String("to", newUserID))
	span.SetStatus(codes.Ok, "")
	return change, nil
}
