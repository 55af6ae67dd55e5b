package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"territory-admin/dbtypes"

	"golang.org/x/text/cases"
)

// AllTypes disables type filtering.
const AllTypes = "All"

// A Caser holds state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

// FilterFeed keeps items of type feedType (any type for "" or AllTypes) whose
// title, subtitle, or owner ID contains search, ignoring case.
func FilterFeed(in []FeedItemWithUser, feedType, search string) []FeedItemWithUser {
	out := []FeedItemWithUser{}
	for _, f := range in {
		if feedType != "" && feedType != AllTypes && f.Item.Type != feedType {
			continue
		}
		if search != "" &&
			!containsFold(f.Item.Title, search) &&
			!containsFold(f.Item.Subtitle, search) &&
			!containsFold(f.Item.UserID, search) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilterActivities keeps sessions whose type matches activityType, ignoring
// case, and whose owner name, type, or owner ID contains search.
func FilterActivities(in []ActivityWithUser, activityType, search string) []ActivityWithUser {
	out := []ActivityWithUser{}
	for _, a := range in {
		if activityType != "" && activityType != AllTypes &&
			fold(a.Activity.ActivityType) != fold(activityType) {
			continue
		}
		if search != "" &&
			!containsFold(DisplayName(a.User), search) &&
			!containsFold(a.Activity.ActivityType, search) &&
			!containsFold(a.Activity.UserID, search) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ActivityTypes returns the distinct activity types present, sorted.
func ActivityTypes(in []ActivityWithUser) []string {
	seen := map[string]bool{}
	types := []string{}
	for _, a := range in {
		if seen[a.Activity.ActivityType] {
			continue
		}
		seen[a.Activity.ActivityType] = true
		types = append(types, a.Activity.ActivityType)
	}
	sort.Strings(types)
	return types
}

func CountExpired(in []TerritoryWithUser, now time.Time) int {
	n := 0
	for _, t := range in {
		if t.Territory.IsExpired(now) {
			n++
		}
	}
	return n
}

// FormatDuration renders seconds as "1h 2m 3s", or "2m 3s" under an hour.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}

// UserSummary is the per-user rollup shown on the user detail view.
type UserSummary struct {
	User              *dbtypes.User
	Activities        int
	FeedItems         int
	Territories       int
	ActiveTerritories int
	ActivityXP        int64
	FeedXP            int64
	DistanceMeters    float64
}

// SummarizeUser counts what u owns among the given lists.  Records owned by
// anyone else are ignored.
func SummarizeUser(u *dbtypes.User, activities []*dbtypes.ActivitySession, feed []*dbtypes.FeedItem, territories []*dbtypes.RemoteTerritory, now time.Time) UserSummary {
	s := UserSummary{User: u}
	for _, a := range activities {
		if a.UserID != u.ID {
			continue
		}
		s.Activities++
		s.ActivityXP += a.XPBreakdown.Total
		s.DistanceMeters += a.DistanceMeters
	}
	for _, f := range feed {
		if f.UserID != u.ID {
			continue
		}
		s.FeedItems++
		s.FeedXP += f.XPEarned
	}
	for _, t := range territories {
		if t.UserID != u.ID {
			continue
		}
		s.Territories++
		if !t.IsExpired(now) {
			s.ActiveTerritories++
		}
	}
	return s
}
