package dbtypes

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

func withFixedNow(t *testing.T) {
	t.Helper()
	old := Now
	Now = func() time.Time { return fixedNow }
	t.Cleanup(func() { Now = old })
}

func ptr[T any](v T) *T {
	return &v
}

func TestDecodeEmptyUser(t *testing.T) {
	withFixedNow(t)

	got := DecodeUser("u1", map[string]any{})
	want := &User{
		ID:       "u1",
		JoinedAt: fixedNow,
		Level:    1,
		XP:       0,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad decode; diff (-got +want)\n%s", diff)
	}
}

func TestDecodeUserClampsProgress(t *testing.T) {
	got := DecodeUser("u1", map[string]any{
		"level": int64(0),
		"xp":    int64(-5),
	})
	if got.Level != 1 || got.XP != 0 {
		t.Errorf("Bad progress; got level=%d xp=%d, want level=1 xp=0", got.Level, got.XP)
	}
}

func TestDecodeAcceptsBoxedNumbers(t *testing.T) {
	got := DecodeUser("u1", map[string]any{
		"level":        json.Number("7"),
		"xp":           float64(120.9),
		"previousRank": int32(3),
	})
	if got.Level != 7 {
		t.Errorf("Bad level; got %d, want 7", got.Level)
	}
	if got.XP != 120 {
		t.Errorf("Bad xp; got %d, want 120", got.XP)
	}
	if got.PreviousRank == nil || *got.PreviousRank != 3 {
		t.Errorf("Bad previousRank; got %v, want 3", got.PreviousRank)
	}
}

func TestDecodeRejectsUnrepresentableNumbers(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e19, -1e19, math.MaxInt64} {
		got := DecodeUser("u1", map[string]any{"xp": f, "previousRank": f})
		if got.XP != 0 {
			t.Errorf("xp %v decoded as %d, want the default 0", f, got.XP)
		}
		if got.PreviousRank != nil {
			t.Errorf("previousRank %v decoded as %d, want absent", f, *got.PreviousRank)
		}
	}

	got := DecodeUser("u1", map[string]any{"previousRank": float64(math.MinInt64)})
	if got.PreviousRank == nil || *got.PreviousRank != math.MinInt64 {
		t.Errorf("Bad previousRank at the int64 floor; got %v", got.PreviousRank)
	}
}

func TestDecodeEmptyFeedItem(t *testing.T) {
	withFixedNow(t)

	got := DecodeFeedItem("f1", map[string]any{})
	want := &FeedItem{
		ID:         "f1",
		Date:       fixedNow,
		IsPersonal: true,
		Rarity:     RarityCommon,
		Type:       FeedTypeUnknown,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad decode; diff (-got +want)\n%s", diff)
	}
}

func TestNewFeedItemDefaults(t *testing.T) {
	withFixedNow(t)

	got := NewFeedItem("T", "S", "u1")
	want := &FeedItem{
		Date:       fixedNow,
		IsPersonal: true,
		Rarity:     RarityCommon,
		Subtitle:   "S",
		Title:      "T",
		Type:       FeedTypeOther,
		UserID:     "u1",
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad new item; diff (-got +want)\n%s", diff)
	}
}

func TestDecodeEmptyActivity(t *testing.T) {
	withFixedNow(t)

	got := DecodeActivitySession("a1", map[string]any{})
	want := &ActivitySession{
		ID:           "a1",
		StartDate:    fixedNow,
		EndDate:      fixedNow,
		ActivityType: DefaultActivityType,
		Route:        []RoutePoint{},
		Missions:     []Mission{},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad decode; diff (-got +want)\n%s", diff)
	}
}

func TestDecodeActivitySkipsMalformedElements(t *testing.T) {
	got := DecodeActivitySession("a1", map[string]any{
		"route": []any{
			map[string]any{"latitude": 1.5, "longitude": int64(2)},
			map[string]any{"latitude": "north", "longitude": 2.0},
			"not a point",
			map[string]any{"latitude": 3.0, "longitude": 4.0, "timestamp": fixedNow},
		},
		"missions": []any{
			map[string]any{"name": "no id"},
			map[string]any{"id": "m1", "name": "Explorer", "rarity": "rare"},
		},
	})

	wantRoute := []RoutePoint{
		{Latitude: 1.5, Longitude: 2},
		{Latitude: 3, Longitude: 4, Timestamp: &fixedNow},
	}
	if diff := cmp.Diff(got.Route, wantRoute); diff != "" {
		t.Errorf("Bad route; diff (-got +want)\n%s", diff)
	}

	wantMissions := []Mission{
		{ID: "m1", Name: "Explorer", Rarity: "rare"},
	}
	if diff := cmp.Diff(got.Missions, wantMissions); diff != "" {
		t.Errorf("Bad missions; diff (-got +want)\n%s", diff)
	}
}

func TestDecodeKeepsXPTotalIndependent(t *testing.T) {
	got := DecodeActivitySession("a1", map[string]any{
		"xpBreakdown": map[string]any{
			"xpBase":      int64(10),
			"xpTerritory": int64(5),
			"total":       int64(100),
		},
	})
	if got.XPBreakdown.Total != 100 {
		t.Errorf("Bad total; got %d, want 100", got.XPBreakdown.Total)
	}
	if got.XPBreakdown.ComponentSum() != 15 {
		t.Errorf("Bad component sum; got %d, want 15", got.XPBreakdown.ComponentSum())
	}
}

func TestDecodeTimestampForms(t *testing.T) {
	withFixedNow(t)

	when := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	got := DecodeTerritoryChange("c1", map[string]any{
		"changedAt":     when.Format(time.RFC3339Nano),
		"activityEndAt": &when,
		"expiresAt":     "garbage",
	})
	if !got.ChangedAt.Equal(when) {
		t.Errorf("Bad changedAt; got %v, want %v", got.ChangedAt, when)
	}
	if got.ActivityEndAt == nil || !got.ActivityEndAt.Equal(when) {
		t.Errorf("Bad activityEndAt; got %v, want %v", got.ActivityEndAt, when)
	}
	if got.ExpiresAt != nil {
		t.Errorf("Bad expiresAt; got %v, want nil", got.ExpiresAt)
	}
}

func TestRoundTrip(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	user := &User{
		ID:                 "u1",
		DisplayName:        "Alice",
		Email:              ptr("alice@example.com"),
		AvatarURL:          ptr("https://example.com/a.png"),
		JoinedAt:           t1,
		LastUpdated:        &t2,
		Level:              4,
		XP:                 1200,
		PreviousRank:       ptr(int64(2)),
		ForceLogoutVersion: ptr(int64(3)),
	}
	if diff := cmp.Diff(DecodeUser(user.ID, user.Fields()), user); diff != "" {
		t.Errorf("User round trip; diff (-got +want)\n%s", diff)
	}

	feed := &FeedItem{
		ID:              "f1",
		Date:            t1,
		IsPersonal:      false,
		Rarity:          RarityEpic,
		RelatedUserName: "Bob",
		Subtitle:        "S",
		Title:           "T",
		Type:            FeedTypeAchievement,
		UserID:          "u1",
		XPEarned:        10,
	}
	if diff := cmp.Diff(DecodeFeedItem(feed.ID, feed.Fields()), feed); diff != "" {
		t.Errorf("FeedItem round trip; diff (-got +want)\n%s", diff)
	}

	activity := &ActivitySession{
		ID:              "a1",
		StartDate:       t1,
		EndDate:         t2,
		ActivityType:    "run",
		DistanceMeters:  5012.5,
		DurationSeconds: 5400,
		Route: []RoutePoint{
			{Latitude: 40.1, Longitude: -3.2, Timestamp: &t1},
			{Latitude: 40.2, Longitude: -3.3},
		},
		XPBreakdown: XPBreakdown{
			XPBase:         1,
			XPTerritory:    2,
			XPStreak:       3,
			XPWeeklyRecord: 4,
			XPBadges:       5,
			Total:          99,
		},
		TerritoryStats: TerritoryStats{
			NewCellsCount:        6,
			DefendedCellsCount:   7,
			RecapturedCellsCount: 8,
		},
		Missions: []Mission{
			{ID: "m1", UserID: "u1", Category: "distance", Name: "Marathon", Description: "Run far", Rarity: "legendary"},
		},
		UserID: "u1",
	}
	if diff := cmp.Diff(DecodeActivitySession(activity.ID, activity.Fields()), activity); diff != "" {
		t.Errorf("ActivitySession round trip; diff (-got +want)\n%s", diff)
	}

	territory := &RemoteTerritory{
		ID: "t1",
		Boundary: []Coordinate{
			{Latitude: 1, Longitude: 1},
			{Latitude: 1, Longitude: 2},
			{Latitude: 2, Longitude: 2},
		},
		CenterLatitude:  1.33,
		CenterLongitude: 1.66,
		ExpiresAt:       t2,
		Timestamp:       t1,
		ActivityEndAt:   &t2,
		UserID:          "u1",
	}
	if diff := cmp.Diff(DecodeRemoteTerritory(territory.ID, territory.Fields()), territory); diff != "" {
		t.Errorf("RemoteTerritory round trip; diff (-got +want)\n%s", diff)
	}

	change := &TerritoryChange{
		ID:                 "c1",
		TerritoryID:        ptr("t1"),
		ChangeType:         "conquered",
		ChangedAt:          t1,
		ActivityEndAt:      &t1,
		ExpiresAt:          &t2,
		NewActivityID:      ptr("a2"),
		NewUserID:          ptr("u2"),
		PreviousActivityID: ptr("a1"),
		PreviousUserID:     ptr("u1"),
	}
	if diff := cmp.Diff(DecodeTerritoryChange(change.ID, change.Fields()), change); diff != "" {
		t.Errorf("TerritoryChange round trip; diff (-got +want)\n%s", diff)
	}

	follow := &FollowRelationship{
		ID:          "u2",
		DisplayName: "Bob",
		AvatarURL:   ptr("https://example.com/b.png"),
		FollowedAt:  &t1,
	}
	if diff := cmp.Diff(DecodeFollowRelationship(follow.ID, follow.Fields()), follow); diff != "" {
		t.Errorf("FollowRelationship round trip; diff (-got +want)\n%s", diff)
	}
}

func TestUserValidate(t *testing.T) {
	testCases := []struct {
		desc    string
		user    *User
		wantErr error
	}{
		{
			desc: "ok without email",
			user: &User{DisplayName: "Alice"},
		},
		{
			desc: "ok with email",
			user: &User{DisplayName: "Alice", Email: ptr("alice@example.com")},
		},
		{
			desc: "empty email is ignored",
			user: &User{DisplayName: "Alice", Email: ptr("")},
		},
		{
			desc:    "missing display name",
			user:    &User{},
			wantErr: ErrDisplayNameRequired,
		},
		{
			desc:    "bad email",
			user:    &User{DisplayName: "Alice", Email: ptr("alice@")},
			wantErr: ErrInvalidEmail,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if err := tc.user.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Bad error; got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestFeedItemValidate(t *testing.T) {
	item := NewFeedItem("T", "S", "")
	if err := item.Validate(); !errors.Is(err, ErrUserIDRequired) {
		t.Errorf("Bad error; got %v, want %v", err, ErrUserIDRequired)
	}
	item.UserID = "u1"
	if err := item.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestTerritoryBoundaryPolicy(t *testing.T) {
	triangle := &RemoteTerritory{
		UserID: "u1",
		Boundary: []Coordinate{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0, Longitude: 1},
			{Latitude: 1, Longitude: 1},
		},
	}
	if err := triangle.Validate(); err != nil {
		t.Fatalf("Unexpected error validating 3-point territory: %v", err)
	}
	if err := triangle.RemoveBoundaryPoint(0); !errors.Is(err, ErrTooFewBoundaryPoints) {
		t.Errorf("Bad error removing from triangle; got %v, want %v", err, ErrTooFewBoundaryPoints)
	}
	if len(triangle.Boundary) != 3 {
		t.Errorf("Triangle lost a point; got %d points", len(triangle.Boundary))
	}

	line := &RemoteTerritory{
		UserID:   "u1",
		Boundary: []Coordinate{{Latitude: 0, Longitude: 0}, {Latitude: 1, Longitude: 1}},
	}
	if err := line.Validate(); !errors.Is(err, ErrTooFewBoundaryPoints) {
		t.Errorf("Bad error validating 2-point territory; got %v, want %v", err, ErrTooFewBoundaryPoints)
	}
	if err := line.RemoveBoundaryPoint(0); !errors.Is(err, ErrTooFewBoundaryPoints) {
		t.Errorf("Bad error removing from 2-point territory; got %v, want %v", err, ErrTooFewBoundaryPoints)
	}

	triangle.AddBoundaryPoint(Coordinate{Latitude: 1, Longitude: 0})
	if err := triangle.RemoveBoundaryPoint(1); err != nil {
		t.Fatalf("Unexpected error removing from square: %v", err)
	}
	want := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 1, Longitude: 1},
		{Latitude: 1, Longitude: 0},
	}
	if diff := cmp.Diff(triangle.Boundary, want); diff != "" {
		t.Errorf("Bad boundary; diff (-got +want)\n%s", diff)
	}

	triangle.AddBoundaryPoint(Coordinate{Latitude: 2, Longitude: 2})
	if err := triangle.RemoveBoundaryPoint(4); !errors.Is(err, ErrBoundaryIndex) {
		t.Errorf("Bad error for out of range index; got %v, want %v", err, ErrBoundaryIndex)
	}
}

func TestEditBoundary(t *testing.T) {
	square := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 2},
		{Latitude: 2, Longitude: 2},
		{Latitude: 2, Longitude: 0},
	}
	testCases := []struct {
		desc     string
		boundary []Coordinate
		remove   []int
		add      []Coordinate
		want     []Coordinate
		wantErr  error
	}{
		{
			desc:     "remove from square",
			boundary: square,
			remove:   []int{3},
			want:     square[:3],
		},
		{
			desc:     "remove from triangle",
			boundary: square[:3],
			remove:   []int{0},
			wantErr:  ErrTooFewBoundaryPoints,
		},
		{
			desc:     "swap a triangle point",
			boundary: square[:3],
			remove:   []int{0},
			add:      []Coordinate{{Latitude: 2, Longitude: 0}},
			want:     square[1:],
		},
		{
			desc:     "remove two from square",
			boundary: square,
			remove:   []int{0, 1},
			wantErr:  ErrTooFewBoundaryPoints,
		},
		{
			desc:     "index past the original boundary",
			boundary: square,
			remove:   []int{4},
			add:      []Coordinate{{Latitude: 5, Longitude: 5}},
			wantErr:  ErrBoundaryIndex,
		},
		{
			desc:     "same index twice",
			boundary: append(square, Coordinate{Latitude: 3, Longitude: 3}),
			remove:   []int{1, 1},
			wantErr:  ErrBoundaryIndex,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			territory := &RemoteTerritory{UserID: "u1", Boundary: append([]Coordinate{}, tc.boundary...)}

			err := territory.EditBoundary(tc.remove, tc.add)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Bad error; got %v, want %v", err, tc.wantErr)
				}
				if diff := cmp.Diff(territory.Boundary, tc.boundary); diff != "" {
					t.Errorf("Failed edit changed the boundary; diff (-got +want)\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(territory.Boundary, tc.want); diff != "" {
				t.Errorf("Bad boundary; diff (-got +want)\n%s", diff)
			}
			center := Centroid(tc.want)
			if territory.CenterLatitude != center.Latitude || territory.CenterLongitude != center.Longitude {
				t.Errorf("Bad center; got %v,%v, want %v,%v", territory.CenterLatitude, territory.CenterLongitude, center.Latitude, center.Longitude)
			}
		})
	}
}

func TestNewTerritory(t *testing.T) {
	withFixedNow(t)

	got := NewTerritory("u1", []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 3},
		{Latitude: 3, Longitude: 0},
	})
	if got.CenterLatitude != 1 || got.CenterLongitude != 1 {
		t.Errorf("Bad center; got (%v, %v), want (1, 1)", got.CenterLatitude, got.CenterLongitude)
	}
	if !got.ExpiresAt.Equal(fixedNow.Add(DefaultTerritoryLifetime)) {
		t.Errorf("Bad expiry; got %v", got.ExpiresAt)
	}
	if got.IsExpired(fixedNow) {
		t.Errorf("New territory is already expired")
	}
	if !got.IsExpired(fixedNow.Add(8 * 24 * time.Hour)) {
		t.Errorf("Territory should be expired after 8 days")
	}
}

func TestDisplayNames(t *testing.T) {
	if got := FeedTypeDisplayName(FeedTypeTerritoryConquered); got != "Territory Conquered" {
		t.Errorf("Bad feed type name; got %q", got)
	}
	if got := FeedTypeDisplayName("mystery"); got != "mystery" {
		t.Errorf("Bad fallback feed type name; got %q", got)
	}
	if got := RarityDisplayName(RarityLegendary); got != "Legendary" {
		t.Errorf("Bad rarity name; got %q", got)
	}
}
