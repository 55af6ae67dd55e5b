// Package aggregate joins the flat collections into the view models the
// operator surfaces print, and computes their derived figures.
//
// Everything here is a pure function of already-fetched lists, except the
// Load* helpers, which do the fetching.
package aggregate

import (
	"sort"

	"territory-admin/dbtypes"
)

// UnknownUserName is shown for records whose owner can't be found.
const UnknownUserName = "Unknown User"

type ActivityWithUser struct {
	Activity *dbtypes.ActivitySession
	User     *dbtypes.User
}

type FeedItemWithUser struct {
	Item *dbtypes.FeedItem
	User *dbtypes.User
}

type TerritoryWithUser struct {
	Territory *dbtypes.RemoteTerritory
	User      *dbtypes.User
}

// indexUsers maps ID to user.  On duplicate IDs the later entry wins.
func indexUsers(users []*dbtypes.User) map[string]*dbtypes.User {
	byID := make(map[string]*dbtypes.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID
}

// JoinActivitiesWithUsers pairs each activity with its owner, keeping the
// order of activities.  User is nil when the owner is unknown.
func JoinActivitiesWithUsers(activities []*dbtypes.ActivitySession, users []*dbtypes.User) []ActivityWithUser {
	byID := indexUsers(users)
	out := make([]ActivityWithUser, 0, len(activities))
	for _, a := range activities {
		out = append(out, ActivityWithUser{Activity: a, User: byID[a.UserID]})
	}
	return out
}

func JoinFeedWithUsers(items []*dbtypes.FeedItem, users []*dbtypes.User) []FeedItemWithUser {
	byID := indexUsers(users)
	out := make([]FeedItemWithUser, 0, len(items))
	for _, f := range items {
		out = append(out, FeedItemWithUser{Item: f, User: byID[f.UserID]})
	}
	return out
}

func JoinTerritoriesWithUsers(territories []*dbtypes.RemoteTerritory, users []*dbtypes.User) []TerritoryWithUser {
	byID := indexUsers(users)
	out := make([]TerritoryWithUser, 0, len(territories))
	for _, t := range territories {
		out = append(out, TerritoryWithUser{Territory: t, User: byID[t.UserID]})
	}
	return out
}

// DisplayName returns u's display name, or UnknownUserName for a nil user.
func DisplayName(u *dbtypes.User) string {
	if u == nil {
		return UnknownUserName
	}
	return u.DisplayName
}

// The sorts below put the newest record first.  They are stable, so records
// with equal timestamps keep their fetch order.

func SortActivities(in []ActivityWithUser) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Activity.EndDate.After(in[j].Activity.EndDate)
	})
}

func SortFeed(in []FeedItemWithUser) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Item.Date.After(in[j].Item.Date)
	})
}

func SortTerritories(in []TerritoryWithUser) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Territory.Timestamp.After(in[j].Territory.Timestamp)
	})
}

func SortUsers(in []*dbtypes.User) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].JoinedAt.After(in[j].JoinedAt)
	})
}

// TotalActivityXP sums the reported xpBreakdown totals.
func TotalActivityXP(in []ActivityWithUser) int64 {
	var total int64
	for _, a := range in {
		total += a.Activity.XPBreakdown.Total
	}
	return total
}

func TotalFeedXP(in []FeedItemWithUser) int64 {
	var total int64
	for _, f := range in {
		total += f.Item.XPEarned
	}
	return total
}
