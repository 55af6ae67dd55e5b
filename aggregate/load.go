package aggregate

import (
	"context"

	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"golang.org/x/sync/errgroup"
)

// loadWithUsers runs fetch and ListUsers concurrently and returns both once
// they have finished.
func loadWithUsers[T any](ctx context.Context, db *dblayer.DB, fetch func(context.Context) ([]T, error)) ([]T, []*dbtypes.User, error) {
	g, ctx := errgroup.WithContext(ctx)

	var records []T
	g.Go(func() error {
		var err error
		records, err = fetch(ctx)
		return err
	})

	var users []*dbtypes.User
	g.Go(func() error {
		var err error
		users, err = db.ListUsers(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return records, users, nil
}

// LoadActivitiesWithUsers fetches the sessions owned by ownerID (all
// sessions if empty) and joins them with the user list.
func LoadActivitiesWithUsers(ctx context.Context, db *dblayer.DB, ownerID string) ([]ActivityWithUser, error) {
	activities, users, err := loadWithUsers(ctx, db, func(ctx context.Context) ([]*dbtypes.ActivitySession, error) {
		return db.ListActivities(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return JoinActivitiesWithUsers(activities, users), nil
}

func LoadFeedWithUsers(ctx context.Context, db *dblayer.DB, ownerID string) ([]FeedItemWithUser, error) {
	items, users, err := loadWithUsers(ctx, db, func(ctx context.Context) ([]*dbtypes.FeedItem, error) {
		return db.ListFeedItems(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return JoinFeedWithUsers(items, users), nil
}

func LoadTerritoriesWithUsers(ctx context.Context, db *dblayer.DB, ownerID string) ([]TerritoryWithUser, error) {
	territories, users, err := loadWithUsers(ctx, db, func(ctx context.Context) ([]*dbtypes.RemoteTerritory, error) {
		return db.ListTerritories(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return JoinTerritoriesWithUsers(territories, users), nil
}

// LoadUserSummary fetches everything u owns and rolls it up.
func LoadUserSummary(ctx context.Context, db *dblayer.DB, u *dbtypes.User) (UserSummary, error) {
	if u.ID == "" {
		// An empty owner filter would match everything.
		return UserSummary{}, dblayer.ErrMissingID
	}

	g, ctx := errgroup.WithContext(ctx)

	var activities []*dbtypes.ActivitySession
	g.Go(func() error {
		var err error
		activities, err = db.ListActivities(ctx, u.ID)
		return err
	})

	var feed []*dbtypes.FeedItem
	g.Go(func() error {
		var err error
		feed, err = db.ListFeedItems(ctx, u.ID)
		return err
	})

	var territories []*dbtypes.RemoteTerritory
	g.Go(func() error {
		var err error
		territories, err = db.ListTerritories(ctx, u.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		return UserSummary{}, err
	}
	return SummarizeUser(u, activities, feed, territories, dbtypes.Now()), nil
}
