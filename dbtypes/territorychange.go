package dbtypes

import "time"

// Change types recorded by the admin tools.  The game writes its own,
// free-form values.
const (
	ChangeTypeAdminTransfer = "adminTransfer"
)

// TerritoryChange is one entry of a territory's ownership history.
type TerritoryChange struct {
	ID                 string     `firestore:"-"`
	TerritoryID        *string    `firestore:"territoryId,omitempty"`
	ChangeType         string     `firestore:"changeType"`
	ChangedAt          time.Time  `firestore:"changedAt"`
	ActivityEndAt      *time.Time `firestore:"activityEndAt,omitempty"`
	ExpiresAt          *time.Time `firestore:"expiresAt,omitempty"`
	NewActivityID      *string    `firestore:"newActivityId,omitempty"`
	NewUserID          *string    `firestore:"newUserId,omitempty"`
	PreviousActivityID *string    `firestore:"previousActivityId,omitempty"`
	PreviousUserID     *string    `firestore:"previousUserId,omitempty"`
}

func DecodeTerritoryChange(id string, fields map[string]any) *TerritoryChange {
	return &TerritoryChange{
		ID:                 id,
		TerritoryID:        optStringField(fields, "territoryId"),
		ChangeType:         stringField(fields, "changeType", ""),
		ChangedAt:          timeField(fields, "changedAt"),
		ActivityEndAt:      optTimeField(fields, "activityEndAt"),
		ExpiresAt:          optTimeField(fields, "expiresAt"),
		NewActivityID:      optStringField(fields, "newActivityId"),
		NewUserID:          optStringField(fields, "newUserId"),
		PreviousActivityID: optStringField(fields, "previousActivityId"),
		PreviousUserID:     optStringField(fields, "previousUserId"),
	}
}

func (c *TerritoryChange) Fields() map[string]any {
	fields := map[string]any{
		"changeType": c.ChangeType,
		"changedAt":  c.ChangedAt,
	}
	putOptString(fields, "territoryId", c.TerritoryID)
	putOptTime(fields, "activityEndAt", c.ActivityEndAt)
	putOptTime(fields, "expiresAt", c.ExpiresAt)
	putOptString(fields, "newActivityId", c.NewActivityID)
	putOptString(fields, "newUserId", c.NewUserID)
	putOptString(fields, "previousActivityId", c.PreviousActivityID)
	putOptString(fields, "previousUserId", c.PreviousUserID)
	return fields
}
