package aggregate

import (
	"context"
	"testing"
	"time"

	"territory-admin/dblayer"
	"territory-admin/dbtypes"
	"territory-admin/docstore/badgerstore"

	"github.com/google/go-cmp/cmp"
)

var day0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time {
	return day0.Add(time.Duration(days) * 24 * time.Hour)
}

func activityIDs(in []ActivityWithUser) []string {
	ids := []string{}
	for _, a := range in {
		ids = append(ids, a.Activity.ID)
	}
	return ids
}

func feedIDs(in []FeedItemWithUser) []string {
	ids := []string{}
	for _, f := range in {
		ids = append(ids, f.Item.ID)
	}
	return ids
}

func TestJoinIsTotal(t *testing.T) {
	alice := &dbtypes.User{ID: "u1", DisplayName: "Alice"}
	stale := &dbtypes.User{ID: "u2", DisplayName: "Old Bob"}
	bob := &dbtypes.User{ID: "u2", DisplayName: "Bob"}
	users := []*dbtypes.User{alice, stale, bob}

	activities := []*dbtypes.ActivitySession{
		{ID: "a1", UserID: "u2"},
		{ID: "a2", UserID: "ghost"},
		{ID: "a3", UserID: ""},
		{ID: "a4", UserID: "u1"},
	}
	got := JoinActivitiesWithUsers(activities, users)

	gotNames := []string{}
	for _, a := range got {
		gotNames = append(gotNames, DisplayName(a.User))
	}
	wantNames := []string{"Bob", UnknownUserName, UnknownUserName, "Alice"}
	if diff := cmp.Diff(gotNames, wantNames); diff != "" {
		t.Errorf("Bad join; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(activityIDs(got), []string{"a1", "a2", "a3", "a4"}); diff != "" {
		t.Errorf("Join reordered activities; diff (-got +want)\n%s", diff)
	}
	if got[1].User != nil {
		t.Errorf("Unmatched owner joined to %+v, want nil", got[1].User)
	}

	feed := JoinFeedWithUsers([]*dbtypes.FeedItem{{ID: "f1", UserID: "ghost"}}, users)
	if feed[0].User != nil {
		t.Errorf("Unmatched feed owner joined to %+v, want nil", feed[0].User)
	}

	territories := JoinTerritoriesWithUsers([]*dbtypes.RemoteTerritory{{ID: "t1", UserID: "u1"}}, users)
	if territories[0].User != alice {
		t.Errorf("Territory joined to %+v, want Alice", territories[0].User)
	}

	if got := JoinActivitiesWithUsers(activities, nil); len(got) != 4 {
		t.Errorf("Join with no users dropped activities; got %d", len(got))
	}
}

func TestSortOrders(t *testing.T) {
	activities := JoinActivitiesWithUsers([]*dbtypes.ActivitySession{
		{ID: "old", EndDate: at(1)},
		{ID: "new", EndDate: at(3)},
		{ID: "tie-first", EndDate: at(2)},
		{ID: "tie-second", EndDate: at(2)},
	}, nil)
	SortActivities(activities)
	if diff := cmp.Diff(activityIDs(activities), []string{"new", "tie-first", "tie-second", "old"}); diff != "" {
		t.Errorf("Bad activity order; diff (-got +want)\n%s", diff)
	}

	feed := JoinFeedWithUsers([]*dbtypes.FeedItem{
		{ID: "f1", Date: at(1)},
		{ID: "f2", Date: at(5)},
	}, nil)
	SortFeed(feed)
	if diff := cmp.Diff(feedIDs(feed), []string{"f2", "f1"}); diff != "" {
		t.Errorf("Bad feed order; diff (-got +want)\n%s", diff)
	}

	territories := JoinTerritoriesWithUsers([]*dbtypes.RemoteTerritory{
		{ID: "t1", Timestamp: at(1)},
		{ID: "t2", Timestamp: at(2)},
	}, nil)
	SortTerritories(territories)
	if territories[0].Territory.ID != "t2" {
		t.Errorf("Bad territory order; first is %q, want t2", territories[0].Territory.ID)
	}

	users := []*dbtypes.User{
		{ID: "u1", JoinedAt: at(1)},
		{ID: "u2", JoinedAt: at(9)},
	}
	SortUsers(users)
	if users[0].ID != "u2" {
		t.Errorf("Bad user order; first is %q, want u2", users[0].ID)
	}
}

func TestTotalsFollowFilters(t *testing.T) {
	activities := JoinActivitiesWithUsers([]*dbtypes.ActivitySession{
		{ID: "a1", ActivityType: "run", XPBreakdown: dbtypes.XPBreakdown{XPBase: 1, Total: 100}},
		{ID: "a2", ActivityType: "Walk", XPBreakdown: dbtypes.XPBreakdown{Total: 20}},
		{ID: "a3", ActivityType: "run", XPBreakdown: dbtypes.XPBreakdown{Total: 3}},
	}, nil)
	if got := TotalActivityXP(activities); got != 123 {
		t.Errorf("Bad activity total; got %d, want 123", got)
	}
	if got := TotalActivityXP(FilterActivities(activities, "RUN", "")); got != 103 {
		t.Errorf("Bad filtered activity total; got %d, want 103", got)
	}

	feed := JoinFeedWithUsers([]*dbtypes.FeedItem{
		{ID: "f1", Type: dbtypes.FeedTypeLevelUp, XPEarned: 50},
		{ID: "f2", Type: dbtypes.FeedTypeAchievement, XPEarned: 7},
	}, nil)
	if got := TotalFeedXP(feed); got != 57 {
		t.Errorf("Bad feed total; got %d, want 57", got)
	}
	if got := TotalFeedXP(FilterFeed(feed, dbtypes.FeedTypeAchievement, "")); got != 7 {
		t.Errorf("Bad filtered feed total; got %d, want 7", got)
	}
}

func TestFilterFeed(t *testing.T) {
	feed := JoinFeedWithUsers([]*dbtypes.FeedItem{
		{ID: "f1", Type: dbtypes.FeedTypeLevelUp, Title: "Reached level 5", UserID: "u1"},
		{ID: "f2", Type: dbtypes.FeedTypeAchievement, Title: "Marathon", Subtitle: "Ran 42km", UserID: "u2"},
		{ID: "f3", Type: dbtypes.FeedTypeAchievement, Title: "Sprinter", UserID: "U1"},
	}, nil)

	testCases := []struct {
		desc     string
		feedType string
		search   string
		want     []string
	}{
		{desc: "no filter", want: []string{"f1", "f2", "f3"}},
		{desc: "all types", feedType: AllTypes, want: []string{"f1", "f2", "f3"}},
		{desc: "by type", feedType: dbtypes.FeedTypeAchievement, want: []string{"f2", "f3"}},
		{desc: "search title ignores case", search: "LEVEL", want: []string{"f1"}},
		{desc: "search subtitle", search: "42km", want: []string{"f2"}},
		{desc: "search user ID", search: "u1", want: []string{"f1", "f3"}},
		{desc: "type and search", feedType: dbtypes.FeedTypeAchievement, search: "u1", want: []string{"f3"}},
		{desc: "no match", search: "zzz", want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := feedIDs(FilterFeed(feed, tc.feedType, tc.search))
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Bad filter result; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestFilterActivitiesSearchesDisplayName(t *testing.T) {
	users := []*dbtypes.User{{ID: "u1", DisplayName: "Alice"}}
	activities := JoinActivitiesWithUsers([]*dbtypes.ActivitySession{
		{ID: "a1", ActivityType: "run", UserID: "u1"},
		{ID: "a2", ActivityType: "cycle", UserID: "u2"},
	}, users)

	if diff := cmp.Diff(activityIDs(FilterActivities(activities, "", "alice")), []string{"a1"}); diff != "" {
		t.Errorf("Bad name search; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(activityIDs(FilterActivities(activities, "", "unknown")), []string{"a2"}); diff != "" {
		t.Errorf("Bad unknown-owner search; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(ActivityTypes(activities), []string{"cycle", "run"}); diff != "" {
		t.Errorf("Bad activity types; diff (-got +want)\n%s", diff)
	}
}

func TestCountExpired(t *testing.T) {
	territories := JoinTerritoriesWithUsers([]*dbtypes.RemoteTerritory{
		{ID: "t1", ExpiresAt: at(1)},
		{ID: "t2", ExpiresAt: at(5)},
		{ID: "t3", ExpiresAt: at(2)},
	}, nil)
	if got := CountExpired(territories, at(3)); got != 2 {
		t.Errorf("Bad expired count; got %d, want 2", got)
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		seconds float64
		want    string
	}{
		{0, "0m 0s"},
		{59.9, "0m 59s"},
		{125, "2m 5s"},
		{3600, "1h 0m 0s"},
		{3723, "1h 2m 3s"},
		{-5, "0m 0s"},
	}
	for _, tc := range testCases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestLoadJoinsAndSummarizes(t *testing.T) {
	ctx := context.Background()

	store, err := badgerstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	defer store.Close()
	db := dblayer.New(store)

	alice := dbtypes.NewUser("Alice", nil)
	if _, err := db.CreateUser(ctx, alice); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, owner := range []string{alice.ID, "ghost"} {
		a := &dbtypes.ActivitySession{
			EndDate:        at(1),
			UserID:         owner,
			DistanceMeters: 1000,
			XPBreakdown:    dbtypes.XPBreakdown{Total: 10},
		}
		if _, err := db.CreateActivity(ctx, a); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if _, err := db.CreateFeedItem(ctx, dbtypes.NewFeedItem("T", "S", owner)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	joined, err := LoadActivitiesWithUsers(ctx, db, "")
	if err != nil {
		t.Fatalf("Unexpected error loading activities: %v", err)
	}
	matched := 0
	for _, a := range joined {
		if a.User != nil {
			matched++
		}
	}
	if len(joined) != 2 || matched != 1 {
		t.Errorf("Bad joined activities; got %d with %d matched, want 2 with 1", len(joined), matched)
	}

	feed, err := LoadFeedWithUsers(ctx, db, alice.ID)
	if err != nil {
		t.Fatalf("Unexpected error loading feed: %v", err)
	}
	if len(feed) != 1 || feed[0].User == nil || feed[0].User.ID != alice.ID {
		t.Errorf("Bad joined feed: %+v", feed)
	}

	summary, err := LoadUserSummary(ctx, db, alice)
	if err != nil {
		t.Fatalf("Unexpected error summarizing: %v", err)
	}
	if summary.Activities != 1 || summary.FeedItems != 1 || summary.ActivityXP != 10 || summary.DistanceMeters != 1000 {
		t.Errorf("Bad summary: %+v", summary)
	}
}
