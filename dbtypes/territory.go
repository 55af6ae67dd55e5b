package dbtypes

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// MinBoundaryPoints is the smallest polygon a territory may have.
const MinBoundaryPoints = 3

// DefaultTerritoryLifetime is how long a new territory is held before it
// expires.
const DefaultTerritoryLifetime = 7 * 24 * time.Hour

var (
	ErrTooFewBoundaryPoints = errors.New("a territory must have at least 3 boundary points")
	ErrBoundaryIndex        = errors.New("boundary point index out of range")
)

type Coordinate struct {
	Latitude  float64 `firestore:"latitude"`
	Longitude float64 `firestore:"longitude"`
}

// RemoteTerritory is a captured area on the map, owned by UserID until
// ExpiresAt.  Its ownership history lives in the "owners" subcollection.
type RemoteTerritory struct {
	ID              string       `firestore:"-"`
	Boundary        []Coordinate `firestore:"boundary"`
	CenterLatitude  float64      `firestore:"centerLatitude"`
	CenterLongitude float64      `firestore:"centerLongitude"`
	ExpiresAt       time.Time    `firestore:"expiresAt"`
	Timestamp       time.Time    `firestore:"timestamp"`
	ActivityEndAt   *time.Time   `firestore:"activityEndAt,omitempty"`
	UserID          string       `firestore:"userId"`
}

func DecodeRemoteTerritory(id string, fields map[string]any) *RemoteTerritory {
	t := &RemoteTerritory{
		ID:              id,
		Boundary:        []Coordinate{},
		CenterLatitude:  floatField(fields, "centerLatitude", 0),
		CenterLongitude: floatField(fields, "centerLongitude", 0),
		ExpiresAt:       timeField(fields, "expiresAt"),
		Timestamp:       timeField(fields, "timestamp"),
		ActivityEndAt:   optTimeField(fields, "activityEndAt"),
		UserID:          stringField(fields, "userId", ""),
	}

	for _, p := range mapsField(fields, "boundary") {
		lat, latOK := asFloat(p["latitude"])
		lon, lonOK := asFloat(p["longitude"])
		if !latOK || !lonOK {
			continue
		}
		t.Boundary = append(t.Boundary, Coordinate{Latitude: lat, Longitude: lon})
	}

	return t
}

func (t *RemoteTerritory) Fields() map[string]any {
	boundary := make([]any, 0, len(t.Boundary))
	for _, c := range t.Boundary {
		boundary = append(boundary, map[string]any{
			"latitude":  c.Latitude,
			"longitude": c.Longitude,
		})
	}

	fields := map[string]any{
		"boundary":        boundary,
		"centerLatitude":  t.CenterLatitude,
		"centerLongitude": t.CenterLongitude,
		"expiresAt":       t.ExpiresAt,
		"timestamp":       t.Timestamp,
		"userId":          t.UserID,
	}
	putOptTime(fields, "activityEndAt", t.ActivityEndAt)
	return fields
}

// NewTerritory builds a territory owned by userID, centered on the boundary's
// centroid and expiring after DefaultTerritoryLifetime.
func NewTerritory(userID string, boundary []Coordinate) *RemoteTerritory {
	now := Now()
	center := Centroid(boundary)
	return &RemoteTerritory{
		Boundary:        boundary,
		CenterLatitude:  center.Latitude,
		CenterLongitude: center.Longitude,
		ExpiresAt:       now.Add(DefaultTerritoryLifetime),
		Timestamp:       now,
		UserID:          userID,
	}
}

func (t *RemoteTerritory) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

func (t *RemoteTerritory) Validate() error {
	if t.UserID == "" {
		return ErrUserIDRequired
	}
	if len(t.Boundary) < MinBoundaryPoints {
		return ErrTooFewBoundaryPoints
	}
	return nil
}

func (t *RemoteTerritory) AddBoundaryPoint(c Coordinate) {
	t.Boundary = append(t.Boundary, c)
}

// RemoveBoundaryPoint deletes point i, refusing to take the polygon below
// MinBoundaryPoints.
func (t *RemoteTerritory) RemoveBoundaryPoint(i int) error {
	if len(t.Boundary) <= MinBoundaryPoints {
		return ErrTooFewBoundaryPoints
	}
	if i < 0 || i >= len(t.Boundary) {
		return fmt.Errorf("%w: %d of %d", ErrBoundaryIndex, i, len(t.Boundary))
	}
	t.Boundary = append(t.Boundary[:i:i], t.Boundary[i+1:]...)
	return nil
}

// EditBoundary appends add, then removes the points at the given indices, and
// recenters the territory.  Indices refer to the boundary before the edit, so
// a point can be swapped out of a triangle in one call.  Every removal obeys
// the RemoveBoundaryPoint floor.  On error t is unchanged.
func (t *RemoteTerritory) EditBoundary(remove []int, add []Coordinate) error {
	edited := &RemoteTerritory{Boundary: slices.Clone(t.Boundary)}
	for _, c := range add {
		edited.AddBoundaryPoint(c)
	}

	idx := slices.Clone(remove)
	slices.Sort(idx)
	slices.Reverse(idx)
	for i, r := range idx {
		if i > 0 && r == idx[i-1] {
			return fmt.Errorf("%w: %d given twice", ErrBoundaryIndex, r)
		}
		if r >= len(t.Boundary) {
			return fmt.Errorf("%w: %d of %d", ErrBoundaryIndex, r, len(t.Boundary))
		}
		if err := edited.RemoveBoundaryPoint(r); err != nil {
			return err
		}
	}

	center := Centroid(edited.Boundary)
	t.Boundary = edited.Boundary
	t.CenterLatitude = center.Latitude
	t.CenterLongitude = center.Longitude
	return nil
}

// Centroid is the mean of the points, which is accurate enough for the small
// polygons the game produces.
func Centroid(points []Coordinate) Coordinate {
	if len(points) == 0 {
		return Coordinate{}
	}
	var c Coordinate
	for _, p := range points {
		c.Latitude += p.Latitude
		c.Longitude += p.Longitude
	}
	c.Latitude /= float64(len(points))
	c.Longitude /= float64(len(points))
	return c
}
