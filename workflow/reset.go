package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ResetCounts says how much a reset or wipe removed.
type ResetCounts struct {
	UsersReset  int
	FeedItems   int
	Activities  int
	Territories int
}

func resetProgress(u *dbtypes.User) {
	now := dbtypes.Now()
	u.XP = 0
	u.Level = 1
	u.LastUpdated = &now
}

// ResetUserData puts u back to level 1 with no XP, then deletes their feed
// items, activities, and territories, in that order.  The account itself is
// kept.  u is updated in place.
func (r *Runner) ResetUserData(ctx context.Context, u *dbtypes.User) (ResetCounts, error) {
	ctx, span := startSpan(ctx, "Runner.ResetUserData", attribute.String("id", u.ID))
	defer span.End()

	var counts ResetCounts

	// An empty owner would select every user's data below.
	if u.ID == "" {
		return counts, fail(span, dblayer.ErrMissingID)
	}

	resetProgress(u)
	if err := r.db.UpdateUser(ctx, u); err != nil {
		return counts, fail(span, fmt.Errorf("while resetting user stats: %w", err))
	}
	counts.UsersReset = 1

	var err error
	if counts.FeedItems, err = r.DeleteFeedItems(ctx, u.ID); err != nil {
		return counts, fail(span, err)
	}
	if counts.Activities, err = r.DeleteActivities(ctx, u.ID); err != nil {
		return counts, fail(span, err)
	}
	if counts.Territories, err = r.DeleteTerritories(ctx, u.ID); err != nil {
		return counts, fail(span, err)
	}

	slog.InfoContext(ctx, "Reset user data",
		slog.String("id", u.ID),
		slog.Int("feed", counts.FeedItems),
		slog.Int("activities", counts.Activities),
		slog.Int("territories", counts.Territories))
	span.SetStatus(codes.Ok, "")
	return counts, nil
}

// MasterWipeAllData resets every user's progress, then deletes the whole
// feed, every activity, and every territory.  Accounts and follow edges
// survive.
func (r *Runner) MasterWipeAllData(ctx context.Context) (ResetCounts, error) {
	ctx, span := startSpan(ctx, "Runner.MasterWipeAllData")
	defer span.End()

	var counts ResetCounts

	users, err := r.db.ListUsers(ctx)
	if err != nil {
		return counts, fail(span, err)
	}
	for _, u := range users {
		resetProgress(u)
		if err := r.db.UpdateUser(ctx, u); err != nil {
			return counts, fail(span, fmt.Errorf("while resetting user %s: %w", u.ID, err))
		}
		counts.UsersReset++
	}

	if counts.FeedItems, err = r.DeleteFeedItems(ctx, ""); err != nil {
		return counts, fail(span, err)
	}
	if counts.Activities, err = r.DeleteActivities(ctx, ""); err != nil {
		return counts, fail(span, err)
	}
	if counts.Territories, err = r.DeleteTerritories(ctx, ""); err != nil {
		return counts, fail(span, err)
	}

	slog.WarnContext(ctx, "Wiped all game data",
		slog.Int("users", counts.UsersReset),
		slog.Int("feed", counts.FeedItems),
		slog.Int("activities", counts.Activities),
		slog.Int("territories", counts.Territories))
	span.SetStatus(codes.Ok, "")
	return counts, nil
}
