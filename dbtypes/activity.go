package dbtypes

import "time"

// DefaultActivityType is what sessions recorded before activity types existed
// decode to.
const DefaultActivityType = "otherOutdoor"

type RoutePoint struct {
	Latitude  float64    `firestore:"latitude"`
	Longitude float64    `firestore:"longitude"`
	Timestamp *time.Time `firestore:"timestamp,omitempty"`
}

// XPBreakdown is the XP a session earned, split by source.  Total is the
// figure the game client reported; it is kept as-is and is not required to
// equal the sum of the components.
type XPBreakdown struct {
	XPBase         int64 `firestore:"xpBase"`
	XPTerritory    int64 `firestore:"xpTerritory"`
	XPStreak       int64 `firestore:"xpStreak"`
	XPWeeklyRecord int64 `firestore:"xpWeeklyRecord"`
	XPBadges       int64 `firestore:"xpBadges"`
	Total          int64 `firestore:"total"`
}

// ComponentSum adds up the five components.
func (b XPBreakdown) ComponentSum() int64 {
	return b.XPBase + b.XPTerritory + b.XPStreak + b.XPWeeklyRecord + b.XPBadges
}

type TerritoryStats struct {
	NewCellsCount        int64 `firestore:"newCellsCount"`
	DefendedCellsCount   int64 `firestore:"defendedCellsCount"`
	RecapturedCellsCount int64 `firestore:"recapturedCellsCount"`
}

// HasImpact reports whether the session touched any territory cells.
func (s TerritoryStats) HasImpact() bool {
	return s.NewCellsCount > 0 || s.DefendedCellsCount > 0 || s.RecapturedCellsCount > 0
}

type Mission struct {
	ID          string `firestore:"id"`
	UserID      string `firestore:"userId"`
	Category    string `firestore:"category"`
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	Rarity      string `firestore:"rarity"`
}

// ActivitySession is one recorded workout.  Sessions are written by the game
// client; the admin tools only read and delete them.
type ActivitySession struct {
	ID              string         `firestore:"-"`
	StartDate       time.Time      `firestore:"startDate"`
	EndDate         time.Time      `firestore:"endDate"`
	ActivityType    string         `firestore:"activityType"`
	DistanceMeters  float64        `firestore:"distanceMeters"`
	DurationSeconds float64        `firestore:"durationSeconds"`
	Route           []RoutePoint   `firestore:"route"`
	XPBreakdown     XPBreakdown    `firestore:"xpBreakdown"`
	TerritoryStats  TerritoryStats `firestore:"territoryStats"`
	Missions        []Mission      `firestore:"missions"`
	UserID          string         `firestore:"userId"`
}

func DecodeActivitySession(id string, fields map[string]any) *ActivitySession {
	xp := mapField(fields, "xpBreakdown")
	stats := mapField(fields, "territoryStats")

	a := &ActivitySession{
		ID:              id,
		StartDate:       timeField(fields, "startDate"),
		EndDate:         timeField(fields, "endDate"),
		ActivityType:    stringField(fields, "activityType", DefaultActivityType),
		DistanceMeters:  floatField(fields, "distanceMeters", 0),
		DurationSeconds: floatField(fields, "durationSeconds", 0),
		Route:           []RoutePoint{},
		XPBreakdown: XPBreakdown{
			XPBase:         intField(xp, "xpBase", 0),
			XPTerritory:    intField(xp, "xpTerritory", 0),
			XPStreak:       intField(xp, "xpStreak", 0),
			XPWeeklyRecord: intField(xp, "xpWeeklyRecord", 0),
			XPBadges:       intField(xp, "xpBadges", 0),
			Total:          intField(xp, "total", 0),
		},
		TerritoryStats: TerritoryStats{
			NewCellsCount:        intField(stats, "newCellsCount", 0),
			DefendedCellsCount:   intField(stats, "defendedCellsCount", 0),
			RecapturedCellsCount: intField(stats, "recapturedCellsCount", 0),
		},
		Missions: []Mission{},
		UserID:   stringField(fields, "userId", ""),
	}

	for _, p := range mapsField(fields, "route") {
		lat, latOK := asFloat(p["latitude"])
		lon, lonOK := asFloat(p["longitude"])
		if !latOK || !lonOK {
			continue
		}
		a.Route = append(a.Route, RoutePoint{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: optTimeField(p, "timestamp"),
		})
	}

	for _, m := range mapsField(fields, "missions") {
		missionID, ok := m["id"].(string)
		if !ok {
			continue
		}
		a.Missions = append(a.Missions, Mission{
			ID:          missionID,
			UserID:      stringField(m, "userId", ""),
			Category:    stringField(m, "category", ""),
			Name:        stringField(m, "name", ""),
			Description: stringField(m, "description", ""),
			Rarity:      stringField(m, "rarity", ""),
		})
	}

	return a
}

func (a *ActivitySession) Fields() map[string]any {
	route := make([]any, 0, len(a.Route))
	for _, p := range a.Route {
		point := map[string]any{
			"latitude":  p.Latitude,
			"longitude": p.Longitude,
		}
		putOptTime(point, "timestamp", p.Timestamp)
		route = append(route, point)
	}

	missions := make([]any, 0, len(a.Missions))
	for _, m := range a.Missions {
		missions = append(missions, map[string]any{
			"id":          m.ID,
			"userId":      m.UserID,
			"category":    m.Category,
			"name":        m.Name,
			"description": m.Description,
			"rarity":      m.Rarity,
		})
	}

	return map[string]any{
		"startDate":       a.StartDate,
		"endDate":         a.EndDate,
		"activityType":    a.ActivityType,
		"distanceMeters":  a.DistanceMeters,
		"durationSeconds": a.DurationSeconds,
		"route":           route,
		"xpBreakdown": map[string]any{
			"xpBase":         a.XPBreakdown.XPBase,
			"xpTerritory":    a.XPBreakdown.XPTerritory,
			"xpStreak":       a.XPBreakdown.XPStreak,
			"xpWeeklyRecord": a.XPBreakdown.XPWeeklyRecord,
			"xpBadges":       a.XPBreakdown.XPBadges,
			"total":          a.XPBreakdown.Total,
		},
		"territoryStats": map[string]any{
			"newCellsCount":        a.TerritoryStats.NewCellsCount,
			"defendedCellsCount":   a.TerritoryStats.DefendedCellsCount,
			"recapturedCellsCount": a.TerritoryStats.RecapturedCellsCount,
		},
		"missions": missions,
		"userId":   a.UserID,
	}
}
